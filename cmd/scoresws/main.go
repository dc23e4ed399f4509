package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/osukit/scoresws/internal/app"
	"github.com/osukit/scoresws/internal/version"
)

func main() {
	var cfgPath string
	var showVersion bool
	flag.StringVar(&cfgPath, "config", "scoresws.yaml", "path to config yaml")
	flag.StringVar(&cfgPath, "c", "scoresws.yaml", "path to config yaml (alias of --config)")
	flag.BoolVar(&showVersion, "version", false, "show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.Get())
		return
	}

	if err := app.Run(cfgPath); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}
