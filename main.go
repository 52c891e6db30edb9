package main

import (
	"context"
	"time"

	"github.com/shandysiswandi/gomfa/internal/app"
)

// @title           GoMFA API
// @version         1.0
// @description     GoMFA authenticates users with a password and an optional SMS or TOTP second factor.
// @server          http://localhost:8080
// @securityDefinitions.apikey  SessionCookie
// @in cookie
// @name sid
func main() {
	application := app.New()    // Initialize the application
	wait := application.Start() // Start the application and wait for the termination signal
	<-wait                      // Wait for the application to receive a termination signal
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	application.Stop(ctx) // Stop the application gracefully
}
