package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/lostfound/internal/admin"
)

func main() {
	cmd := admin.NewRootCommand(admin.AppOpener(os.Stderr), os.Stdin)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
