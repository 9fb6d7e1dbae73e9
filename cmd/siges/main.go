package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"siges/internal/config"
	"siges/internal/connectors"
	gmailconnector "siges/internal/connectors/gmail"
	imapconnector "siges/internal/connectors/imap"
	"siges/internal/listener"
	"siges/internal/pipeline"
	"siges/internal/storage"
	"siges/internal/submission"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	client := submission.NewClient(cfg)

	cmd := os.Args[1]
	switch cmd {
	case "affiliates:validate", "affiliates:submit":
		submit := cmd == "affiliates:submit"
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		file := fs.String("file", "", "bulk CSV path (MS|MSCM|MC|MCCM + yyyymm .csv)")
		regime := fs.String("regime", "", "regime option name or id; inferred from the file name when empty")
		errorsOut := fs.String("errors-out", "", "write an xlsx error report here when the file is not accepted")
		org := fs.Int("org", 0, "organization id (default SIGES_ORGANIZATION_ID)")
		user := fs.Int("user", 0, "user id (default SIGES_USER_ID)")
		batch := fs.Int("batch", 0, "records per batch (default SIGES_BATCH_SIZE)")
		force := fs.Bool("force", false, "send even if this content was already sent for the period")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*file) == "" {
			must(fmt.Errorf("--file is required"))
		}

		processor, err := pipeline.NewProcessingService(db, cfg, client, nil)
		must(err)
		res, err := processor.ProcessFile(ctx, pipeline.FileRequest{
			Path:           *file,
			Regime:         *regime,
			OrganizationID: *org,
			UserID:         *user,
			BatchSize:      *batch,
			Submit:         submit,
			Force:          *force,
		})
		must(err)

		for _, msg := range res.Messages() {
			fmt.Println(msg)
		}
		fmt.Printf("%s done trace=%s file=%s regime=%s period=%s status=%s rows=%d accepted=%d skipped=%d sent=%d errors=%d\n",
			cmd, res.TraceID, res.FileName, res.Regime, res.Period, res.Status,
			res.RowsRead, res.Accepted, res.Skipped, res.TotalSent, len(res.Errors))
		if !res.OK() {
			if strings.TrimSpace(*errorsOut) != "" {
				must(pipeline.ExportErrorsToXLSX(res, *errorsOut))
				fmt.Printf("error report written to %s\n", *errorsOut)
			}
			os.Exit(2)
		}
	case "affiliates:regimes":
		options, err := client.ListRegimes(ctx)
		must(err)
		for _, opt := range options {
			fmt.Printf("id=%d name=%s\n", opt.ID, opt.Name)
		}
	case "affiliates:runs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "number of runs")
		_ = fs.Parse(os.Args[2:])
		runs, err := db.ListSubmissions(*limit)
		must(err)
		for _, run := range runs {
			fmt.Printf("%s trace=%s file=%s regime=%s period=%s status=%s records=%d sent=%d errors=%d\n",
				run.CreatedAt, run.TraceID, run.FileName, run.Regime, run.Period, run.Status,
				run.TotalRecords, run.TotalSent, len(run.Errors))
		}
	case "affiliates:process-pending":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		batch := fs.Int("batch", cfg.MailListenerProcessBatch, "max intake files")
		submit := fs.Bool("submit", cfg.MailListenerAutoSubmit, "submit accepted files")
		_ = fs.Parse(os.Args[2:])
		processor, err := pipeline.NewProcessingService(db, cfg, client, nil)
		must(err)
		items, err := processor.ProcessPending(ctx, *batch, *submit)
		must(err)
		for _, item := range items {
			fmt.Printf("intake id=%d file=%s status=%s run=%s errors=%d\n",
				item.File.ID, item.File.FileName, item.File.Status, item.Result.Status, len(item.Result.Errors))
		}
		fmt.Printf("processed pending files=%d\n", len(items))
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", "gmail", "gmail|imap")
		label := fs.String("label", "INBOX", "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(ctx, cfg, *provider)
		must(err)
		fetch := connectors.NewFetchService(db, cfg.IntakeDir, conn, nil)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d skipped=%d\n", *provider, result.Fetched, result.Stored, result.Skipped)
	case "mail:listen":
		processor, err := pipeline.NewProcessingService(db, cfg, client, nil)
		must(err)
		s := listener.NewService(db, cfg, processor, nil)
		must(s.Run(ctx))
	default:
		usage()
		os.Exit(1)
	}
}

func makeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func usage() {
	fmt.Println("usage: siges <command>")
	fmt.Println("commands:")
	fmt.Println("  affiliates:validate --file=MS202509.csv [--regime=SUBSIDIADO|1] [--errors-out=./out/errors.xlsx]")
	fmt.Println("  affiliates:submit --file=MS202509.csv [--regime=SUBSIDIADO|1] [--org=1 --user=1 --batch=250 --force --errors-out=...]")
	fmt.Println("  affiliates:regimes")
	fmt.Println("  affiliates:runs [--limit=20]")
	fmt.Println("  affiliates:process-pending [--batch=10] [--submit]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  mail:listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
