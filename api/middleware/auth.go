package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/locey/TaskAVS/base/errcode"
	"github.com/locey/TaskAVS/base/xhttp"
	xcommon "github.com/locey/TaskAVS/common"
	"github.com/locey/TaskAVS/service/auth"
)

const sessionKey = "taskavs.session"

type TokenParser interface {
	ParseToken(token string) (*auth.Session, error)
}

// Auth requires a valid bearer token and stores its session on the context.
func Auth(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			xhttp.Error(c, errcode.ErrUnauthorized.WithMsg("missing bearer token"))
			return
		}
		session, err := parser.ParseToken(strings.TrimSpace(token))
		if err != nil {
			xhttp.Error(c, err)
			return
		}
		c.Set(sessionKey, session)
		c.Next()
	}
}

// Admin lets through sessions whose wallet is in admins. It must run after Auth.
func Admin(admins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := Session(c)
		if session == nil {
			xhttp.Error(c, errcode.ErrUnauthorized.WithMsg("missing session"))
			return
		}
		for _, a := range admins {
			if xcommon.SameAddress(a, session.Address) {
				c.Next()
				return
			}
		}
		xhttp.Error(c, errcode.ErrForbidden.WithMsg("admin only"))
	}
}

func Session(c *gin.Context) *auth.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*auth.Session)
	return s
}
