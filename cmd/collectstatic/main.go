// Command collectstatic copies the frontend build assets into STATIC_ROOT,
// adding content-hashed copies, gzip variants and a staticfiles.json manifest.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/go-while/go-growfolio/internal/config"
	"github.com/go-while/go-growfolio/internal/logging"
	"github.com/go-while/go-growfolio/internal/staticfiles"
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	var (
		noInput   = flag.Bool("noinput", false, "Do not prompt for confirmation")
		clearRoot = flag.Bool("clear", false, "Remove existing files in STATIC_ROOT before collecting")
		dryRun    = flag.Bool("dry-run", false, "Report what would be collected without writing anything")
	)
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logging.InitLogger(settings.LogLevel, settings.LogFormat)
	slog.Info("go-growfolio collectstatic", "version", config.AppVersion)

	info, err := os.Stat(settings.AssetDir)
	if err != nil || !info.IsDir() {
		slog.Error("Asset directory not found, build the frontend first", "asset_dir", settings.AssetDir)
		os.Exit(1)
	}

	if !*noInput && !*dryRun && term.IsTerminal(int(os.Stdin.Fd())) {
		action := "overwrite existing files in"
		if *clearRoot {
			action = "DELETE ALL FILES in"
		}
		if !confirm(fmt.Sprintf("This will %s %s. Are you sure? [y/N]: ", action, settings.StaticRoot)) {
			fmt.Println("Collecting static files cancelled.")
			os.Exit(1)
		}
	}

	res, err := staticfiles.Collect(os.DirFS(settings.AssetDir), settings.StaticRoot, staticfiles.Options{
		Clear:  *clearRoot,
		DryRun: *dryRun,
	})
	if err != nil {
		slog.Error("Failed to collect static files", "error", err)
		os.Exit(1)
	}

	verb := "copied"
	if *dryRun {
		verb = "would be copied"
	}
	fmt.Printf("%d static files %s to '%s', %d gzip variants, %d manifest entries.\n",
		res.Copied, verb, settings.StaticRoot, res.Compressed, res.Manifest.Len())
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
