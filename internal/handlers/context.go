package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/teamspace/internal/auth"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// signInMeta captures the client details recorded against a sign-in.
func signInMeta(c *gin.Context) iauth.SignInMeta {
	meta := iauth.SignInMeta{IPAddress: c.ClientIP()}
	if c.Request != nil {
		meta.UserAgent = c.Request.UserAgent()
	}
	return meta
}
