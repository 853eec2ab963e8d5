// cmd/formfling/main.go
package main

import (
	"context"
	"os"

	"github.com/dalemusser/formfling/app"
	"github.com/dalemusser/formfling/internal/app/bootstrap"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks, os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
