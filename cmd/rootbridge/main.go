// Package main is the entrypoint for rootbridge: the bridge service, the
// privileged helper and a few operator commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/rootbridge/internal/config"
	"github.com/morezero/rootbridge/internal/server"
	"github.com/morezero/rootbridge/pkg/commsutil"
	"github.com/morezero/rootbridge/pkg/db"
	"github.com/morezero/rootbridge/pkg/dispatcher"
	"github.com/morezero/rootbridge/pkg/intent"
	"github.com/morezero/rootbridge/pkg/launcher"
)

const usage = `Usage: rootbridge [command]
       rootbridge serve                     Start the bridge (COMMS, HTTP health, launch journal).
       rootbridge helper                    Start the privileged helper that runs commands via HELPER_SHELL.
       rootbridge encode <file>             Print the "am start" command for a launch descriptor (JSON).
       rootbridge launch <file> [result]    Ask the bridge to launch a descriptor; "result" waits for an activity result token.
       rootbridge relaunch <file>           Ask the bridge to restart an app after a short delay.
       rootbridge reboot [reason]           Ask the bridge to reboot (userspace, bootloader, download, edl, recovery).
       rootbridge status                    Show bridge state.
       rootbridge history [n]               List the last n journaled launches (default 20).
       rootbridge history show <id>         Show one journaled launch.
       rootbridge migrate up                Run database migrations.
       rootbridge migrate status            Show migration status.

Commands:
  serve           (default) Start the bridge.
  helper          Start the helper; it must run with root access.
  migrate up      Run database migrations only.
  migrate status  Show current migration status.

Environment: COMMS_URL, USER_ID, PLATFORM_VERSION, DATABASE_URL (journal, optional for serve), MIGRATION_PATH, HTTP_PORT (default 8080), RULES_FILE. See README.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "migrate":
		if len(args) < 2 {
			log.Fatalf("rootbridge migrate: require subcommand (up, status)")
		}
		sub := args[1]
		switch sub {
		case "up":
			if err := runMigrateUp(); err != nil {
				log.Fatalf("rootbridge migrate up: %v", err)
			}
		case "status":
			if err := runMigrateStatus(); err != nil {
				log.Fatalf("rootbridge migrate status: %v", err)
			}
		default:
			log.Fatalf("rootbridge migrate: unknown subcommand %q (use up, status)", sub)
		}
		return
	case "helper":
		if err := server.RunHelper(); err != nil {
			log.Fatalf("rootbridge helper: %v", err)
		}
		return
	case "encode":
		if len(args) < 2 {
			log.Fatalf("rootbridge encode: require descriptor file")
		}
		if err := runEncode(args[1], os.Stdout); err != nil {
			log.Fatalf("rootbridge encode: %v", err)
		}
		return
	case "launch", "relaunch":
		if len(args) < 2 {
			log.Fatalf("rootbridge %s: require descriptor file", cmd)
		}
		forResult := cmd == "launch" && len(args) > 2 && args[2] == "result"
		if err := runLaunch(cmd, args[1], forResult); err != nil {
			log.Fatalf("rootbridge %s: %v", cmd, err)
		}
		return
	case "reboot":
		reason := ""
		if len(args) > 1 {
			reason = args[1]
		}
		if err := runBridgeCall(server.MethodReboot, map[string]string{"reason": reason}); err != nil {
			log.Fatalf("rootbridge reboot: %v", err)
		}
		return
	case "status":
		if err := runBridgeCall(server.MethodStatus, nil); err != nil {
			log.Fatalf("rootbridge status: %v", err)
		}
		return
	case "history":
		if len(args) > 1 && args[1] == "show" {
			if len(args) < 3 {
				log.Fatalf("rootbridge history show: require launch id")
			}
			if err := runHistoryShow(args[2]); err != nil {
				log.Fatalf("rootbridge history show: %v", err)
			}
			return
		}
		limit := 20
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				log.Fatalf("rootbridge history: invalid count %q", args[1])
			}
			limit = n
		}
		if err := runHistory(limit); err != nil {
			log.Fatalf("rootbridge history: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
		break
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("rootbridge: %v", err)
	}
}

func readDescriptor(path string) (*intent.LaunchDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}
	var d intent.LaunchDescriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse descriptor: %w", err)
	}
	return &d, nil
}

func runEncode(path string, w io.Writer) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	d, err := readDescriptor(path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, intent.JoinShell(intent.StartCommand(cfg.UserID, d)))
	return err
}

func runLaunch(method, path string, forResult bool) error {
	d, err := readDescriptor(path)
	if err != nil {
		return err
	}
	return runBridgeCall(method, server.LaunchParams{Descriptor: *d, ForResult: forResult})
}

// runBridgeCall sends one request to the running bridge and prints its result.
func runBridgeCall(method string, params interface{}) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-cli", nil)
	if err != nil {
		return err
	}
	defer nc.Close()

	channel := launcher.NewCommsChannel(nc, &launcher.CommsChannelOpts{
		Subject: cfg.BridgeSubjectOrDefault(),
		UserID:  cfg.UserID,
		Timeout: cfg.RequestTimeout,
	})
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	defer cancel()

	resp, err := channel.Send(ctx, method, params)
	if err != nil {
		return err
	}
	if err := responseError(method, resp); err != nil {
		return err
	}
	if len(resp.Result) > 0 {
		fmt.Println(string(resp.Result))
	}
	return nil
}

// responseError returns the failure carried by resp, or nil when it is ok.
func responseError(method string, resp *dispatcher.HelperResponse) error {
	if resp.Ok {
		return nil
	}
	if resp.Error != nil {
		return resp.Error
	}
	return fmt.Errorf("%s failed", method)
}

func runHistory(limit int) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	records, err := db.NewRepository(pool).ListRecent(ctx, limit)
	if err != nil {
		return err
	}
	return printHistory(os.Stdout, records)
}

func runHistoryShow(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid launch id %q: %w", id, err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	rec, err := db.NewRepository(pool).GetLaunch(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no launch with id %s", id)
	}
	return printLaunch(os.Stdout, rec)
}

func printLaunch(out io.Writer, r *db.LaunchRecord) error {
	token, detail := "-", "-"
	if r.Token != nil {
		token = strconv.Itoa(*r.Token)
	}
	if r.Detail != nil && *r.Detail != "" {
		detail = *r.Detail
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\t%s\n", r.ID)
	fmt.Fprintf(w, "KIND\t%s\n", r.Kind)
	fmt.Fprintf(w, "TOKEN\t%s\n", token)
	fmt.Fprintf(w, "STATUS\t%s\n", r.Status)
	fmt.Fprintf(w, "DETAIL\t%s\n", detail)
	fmt.Fprintf(w, "COMMAND\t%s\n", r.Command)
	fmt.Fprintf(w, "CREATED\t%s\n", r.Created.Format(time.RFC3339))
	fmt.Fprintf(w, "MODIFIED\t%s\n", r.Modified.Format(time.RFC3339))
	return w.Flush()
}

func printHistory(out io.Writer, records []db.LaunchRecord) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CREATED\tKIND\tTOKEN\tSTATUS\tCOMMAND")
	for _, r := range records {
		token := "-"
		if r.Token != nil {
			token = strconv.Itoa(*r.Token)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.Created.Format(time.RFC3339), r.Kind, token, r.Status, r.Command)
	}
	return w.Flush()
}

func runMigrateUp() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrations, err := db.LoadMigrationFiles(cfg.MigrationPath)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if err := db.RunMigrations(ctx, pool, migrations); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func runMigrateStatus() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForDB(); err != nil {
		return err
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	applied, files, err := db.MigrationStatus(ctx, pool, cfg.MigrationPath)
	if err != nil {
		return err
	}
	fmt.Printf("Migration files: %d\nlaunch_journal present: %v\n", files, applied)
	return nil
}
