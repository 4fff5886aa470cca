// Package main is the entry point for the EnviroMoon tray application
package main

import (
	"context"
	"embed"
	"flag"
	"log"
	"time"

	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"

	"github.com/alamin-nifty/enviromoon-mobile/internal/app"
	"github.com/alamin-nifty/enviromoon-mobile/internal/config"
	"github.com/alamin-nifty/enviromoon-mobile/internal/models"
	"github.com/alamin-nifty/enviromoon-mobile/internal/tray"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	minimized := flag.Bool("minimized", false, "start hidden in the system tray")
	flag.Parse()

	env, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	service := app.NewDashboardService(env)
	settings := service.GetSettings()

	wailsApp := application.New(application.Options{
		Name:        "EnviroMoon",
		Description: "Environmental monitor dashboard",
		Services: []application.Service{
			application.NewService(service),
		},
		Assets: application.AssetOptions{
			Handler: application.AssetFileServerFS(assets),
		},
		Mac: application.MacOptions{
			ActivationPolicy: application.ActivationPolicyAccessory,
		},
	})
	service.SetApp(wailsApp)

	window := wailsApp.Window.NewWithOptions(application.WebviewWindowOptions{
		Name:             "dashboard",
		Title:            "EnviroMoon",
		Width:            settings.WindowWidth,
		Height:           settings.WindowHeight,
		MinWidth:         600,
		MinHeight:        500,
		Hidden:           *minimized || settings.StartMinimized, // Show from tray
		BackgroundColour: application.NewRGB(27, 38, 54),
		URL:              "/",
	})

	// Hide instead of close
	window.RegisterHook(events.Common.WindowClosing, func(e *application.WindowEvent) {
		window.Hide()
		e.Cancel()
	})

	showDashboard := func() {
		window.Show()
		window.Focus()
	}

	menu := application.NewMenu()
	menu.Add("Open Dashboard").OnClick(func(*application.Context) { showDashboard() })
	menu.Add("Refresh Now").OnClick(func(*application.Context) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := service.Refresh(ctx); err != nil {
				log.Printf("WARN: manual refresh failed: %v", err)
			}
		}()
	})
	menu.AddSeparator()
	menu.Add("Quit").OnClick(func(*application.Context) { wailsApp.Quit() })

	systemTray := wailsApp.SystemTray.New()
	systemTray.SetLabel(models.Unavailable)
	systemTray.SetIcon(service.IconGenerator().GenerateIcon(models.Unavailable, 0, tray.LevelUnknown))
	systemTray.SetMenu(menu)
	systemTray.OnClick(showDashboard)
	service.SetTray(systemTray)

	if err := wailsApp.Run(); err != nil {
		log.Fatal(err)
	}
}
