package cmd

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/autoreply/internal/config"
	storepg "github.com/nextlevelbuilder/autoreply/internal/store/pg"
	storesqlite "github.com/nextlevelbuilder/autoreply/internal/store/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration, database, and backend reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			check := func(name string, ok bool, detail string) {
				mark := "ok"
				if !ok {
					mark = "MISSING"
				}
				fmt.Printf("%-28s %s %s\n", name, mark, detail)
			}

			check("backend url", cfg.BackendURL != "", "")
			check("api token", cfg.APIToken != "", "")
			check("store mode", cfg.StoreMode == config.ModeManaged || cfg.StoreMode == config.ModeStandalone, cfg.StoreMode)

			switch cfg.StoreMode {
			case config.ModeManaged:
				if cfg.PostgresDSN == "" {
					check("postgres dsn", false, "")
					break
				}
				db, err := storepg.OpenDB(cfg.PostgresDSN)
				if err != nil {
					check("postgres", false, err.Error())
				} else {
					db.Close()
					check("postgres", true, "connected")
				}
			case config.ModeStandalone:
				db, err := storesqlite.OpenDB(cfg.SQLitePath)
				if err != nil {
					check("sqlite", false, err.Error())
				} else {
					db.Close()
					check("sqlite", true, cfg.SQLitePath)
				}
			}

			if cfg.BackendURL != "" {
				client := &http.Client{Timeout: 5 * time.Second}
				resp, err := client.Head(cfg.BackendURL)
				if err != nil {
					check("backend reachability", false, err.Error())
				} else {
					resp.Body.Close()
					check("backend reachability", true, resp.Status)
				}
			}

			check("telegram sender", cfg.TelegramToken != "", "optional")
			check("whatsapp sender", cfg.WhatsAppBridgeURL != "", "optional")
			check("discord sender", cfg.DiscordToken != "", "optional")
			check("line sender", cfg.LineGatewayURL != "", "optional")
			check("sms sender", cfg.SmsGatewayURL != "", "optional")

			return nil
		},
	}
}
