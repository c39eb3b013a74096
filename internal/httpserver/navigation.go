package httpserver

import (
	"io"
	"net/http"

	"storefront/internal/navigation"
	"storefront/internal/session"

	"github.com/gin-gonic/gin"
)

type navigationState struct {
	Decision navigation.Decision `json:"decision"`
	Location string              `json:"location"`
	Auth     navigation.Status   `json:"auth_status"`
}

func navigationOf(s *session.Session) navigationState {
	return navigationState{
		Decision: s.Navigator.Current(),
		Location: s.Navigator.Location(),
		Auth:     s.Auth.Current().Status,
	}
}

func (h *handlers) navigate(c *gin.Context) {
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}
	s := currentSession(c)
	s.Navigator.Navigate(path)
	c.JSON(http.StatusOK, navigationOf(s))
}

// navigationEvents streams a decision whenever the session's auth state moves
// the navigator, starting with the current one.
func (h *handlers) navigationEvents(c *gin.Context) {
	s := currentSession(c)
	events := make(chan navigation.Decision, 8)
	cancel := s.Navigator.Subscribe(func(d navigation.Decision) {
		select {
		case events <- d:
		default:
			h.logger.Warn().Str("session_id", s.ID).Msg("navigation stream lagging, event dropped")
		}
	})
	defer cancel()

	c.SSEvent("navigation", navigationOf(s))
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case d := <-events:
			c.SSEvent("navigation", navigationState{
				Decision: d,
				Location: s.Navigator.Location(),
				Auth:     s.Auth.Current().Status,
			})
			return true
		}
	})
}
