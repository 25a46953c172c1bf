// Command docvault is the operational CLI for the remote document store.
//
// Usage:
//
//	docvault [-config path] <command> [arguments]
//
// Commands:
//
//	check                              verify connectivity and credentials
//	containers                         list containers
//	create-container <name>            create a container
//	init-schema <container>            declare the standard metadata columns
//	ls <container> [path]              list files in a folder
//	upload <container> <file> [flags]  upload a file
//	download <container> <item> [-o f] download a file
//	rm <container> <item>              delete a file
//	query <container> [flags]          list documents with metadata
//	pending                            list interrupted chunked uploads
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/havenworks/docvault/internal/journal"
	"github.com/havenworks/docvault/internal/logger"
	"github.com/havenworks/docvault/internal/sanitize"
	"github.com/havenworks/docvault/pkg/config"
	"github.com/havenworks/docvault/pkg/storage"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (default: "+config.GetDefaultConfigPath()+")")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "docvault: %v\n", err)
		os.Exit(1)
	}
	if err := config.SetupLogging(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "docvault: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, args[0], args[1:]); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, command string, args []string) error {
	// The pending command only needs the journal, not a working API client.
	if command == "pending" {
		return runPending(ctx, cfg)
	}

	client, err := config.CreateClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	switch command {
	case "check":
		return runCheck(ctx, client)
	case "containers":
		return runContainers(ctx, client)
	case "create-container":
		return runCreateContainer(ctx, client, args)
	case "init-schema":
		return runInitSchema(ctx, client, args)
	case "ls":
		return runLs(ctx, client, args)
	case "upload":
		return runUpload(ctx, client, args)
	case "download":
		return runDownload(ctx, client, args)
	case "rm":
		return runRm(ctx, client, args)
	case "query":
		return runQuery(ctx, client, args)
	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func runCheck(ctx context.Context, client *storage.Client) error {
	if err := client.TestConnectivity(ctx); err != nil {
		return err
	}
	fmt.Printf("OK (circuit %s)\n", client.BreakerState())
	return nil
}

func runContainers(ctx context.Context, client *storage.Client) error {
	containers, err := client.ListContainers(ctx)
	if err != nil {
		return err
	}
	for _, c := range containers {
		fmt.Printf("%s\t%s\t%s\n", c.ID, c.DisplayName, c.Status)
	}
	return nil
}

func runCreateContainer(ctx context.Context, client *storage.Client, args []string) error {
	fs := flag.NewFlagSet("create-container", flag.ExitOnError)
	description := fs.String("description", "", "Container description")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: create-container [-description text] <name>")
	}

	container, err := client.CreateContainer(ctx, storage.CreateContainerRequest{
		DisplayName: fs.Arg(0),
		Description: *description,
	})
	if err != nil {
		return err
	}
	fmt.Println(container.ID)
	return nil
}

func runInitSchema(ctx context.Context, client *storage.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: init-schema <container>")
	}
	return client.InitializeMetadataSchema(ctx, args[0])
}

func runLs(ctx context.Context, client *storage.Client, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: ls <container> [path]")
	}

	path := ""
	if len(args) == 2 {
		path = args[1]
	}

	items, err := client.ListFiles(ctx, args[0], path)
	if err != nil {
		return err
	}
	for _, it := range items {
		kind := "f"
		if it.IsFolder() {
			kind = "d"
		}
		fmt.Printf("%s\t%10d\t%s\t%s\t%s\n", kind, it.Size, it.ModifiedAt.Format(time.RFC3339), it.ID, it.Name)
	}
	return nil
}

func runUpload(ctx context.Context, client *storage.Client, args []string) error {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	dest := fs.String("dest", "", "Destination folder path")
	name := fs.String("name", "", "Remote file name (default: local file name)")
	expense := fs.String("expense", "", "Expense record id (switches to canonical layout)")
	project := fs.String("project", "", "Project code for the canonical layout")
	year := fs.Int("year", 0, "Accounting year for the canonical layout")
	fs.Parse(args)

	if fs.NArg() != 2 {
		return fmt.Errorf("usage: upload [flags] <container> <file>")
	}
	containerID, localPath := fs.Arg(0), fs.Arg(1)

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}

	req := storage.UploadRequest{
		ContainerID: containerID,
		FolderPath:  *dest,
		FileName:    *name,
		Data:        data,
	}
	if req.FileName == "" {
		req.FileName = filepath.Base(localPath)
	}
	if *expense != "" {
		req.Structured = &sanitize.StructuredID{
			RecordID:     *expense,
			CategoryCode: *project,
			Year:         *year,
		}
		req.Metadata = map[string]any{"ExpenseID": *expense}
		if *project != "" {
			req.Metadata["ProjectCode"] = *project
		}
	}

	item, err := client.UploadFile(ctx, req)
	if err != nil {
		// A partial upload still produced an item; report it before failing.
		if item != nil {
			fmt.Println(item.ID)
		}
		return err
	}
	fmt.Println(item.ID)
	return nil
}

func runDownload(ctx context.Context, client *storage.Client, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	output := fs.String("o", "", "Output file (default: item name in the current directory)")
	fs.Parse(args)

	if fs.NArg() != 2 {
		return fmt.Errorf("usage: download [-o file] <container> <item>")
	}
	containerID, itemID := fs.Arg(0), fs.Arg(1)

	target := *output
	if target == "" {
		item, err := client.GetItem(ctx, containerID, itemID)
		if err != nil {
			return err
		}
		target = item.Name
	}

	data, err := client.DownloadFile(ctx, containerID, itemID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(target, data, 0644); err != nil {
		return err
	}
	fmt.Printf("%s (%d bytes)\n", target, len(data))
	return nil
}

func runRm(ctx context.Context, client *storage.Client, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: rm <container> <item>")
	}
	return client.DeleteFile(ctx, args[0], args[1])
}

func runQuery(ctx context.Context, client *storage.Client, args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	path := fs.String("path", "", "Folder path to query")
	project := fs.String("project", "", "Filter by project code")
	expense := fs.String("expense", "", "Filter by expense id")
	orderBy := fs.String("order-by", "", "Metadata field to order by")
	desc := fs.Bool("desc", false, "Order descending")
	top := fs.Int("top", 0, "Maximum number of results")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: query [flags] <container>")
	}

	opts := storage.QueryOptions{
		OrderBy:    *orderBy,
		Descending: *desc,
		Top:        *top,
	}
	if *project != "" {
		opts.Filters = append(opts.Filters, storage.MetadataFilter{
			Field: "ProjectCode", Operator: storage.OpEq, Value: *project,
		})
	}
	if *expense != "" {
		opts.Filters = append(opts.Filters, storage.MetadataFilter{
			Field: "ExpenseID", Operator: storage.OpEq, Value: *expense,
		})
	}

	docs, err := client.ListDocumentsWithMetadata(ctx, fs.Arg(0), *path, opts)
	if err != nil {
		return err
	}
	for _, doc := range docs {
		fmt.Printf("%s\t%s", doc.Item.ID, doc.Item.Name)
		for k, v := range doc.Fields {
			fmt.Printf("\t%s=%v", k, v)
		}
		fmt.Println()
	}
	return nil
}

func runPending(ctx context.Context, cfg *config.Config) error {
	if !cfg.Journal.Enabled {
		return fmt.Errorf("the upload journal is disabled; enable it in the config to track pending uploads")
	}

	jnl, err := journal.Open(ctx, journal.Config{Path: cfg.Journal.Path})
	if err != nil {
		return err
	}
	defer jnl.Close()

	pending, err := jnl.Pending(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending uploads")
		return nil
	}
	for _, cp := range pending {
		pct := "0"
		if cp.TotalSize > 0 {
			pct = strconv.FormatInt(cp.BytesSent*100/cp.TotalSize, 10)
		}
		fmt.Printf("%s\t%s/%s\t%s%% of %d bytes\t%s\n",
			cp.ContainerID, cp.Path, cp.Name, pct, cp.TotalSize, cp.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func usage() {
	fmt.Fprintf(os.Stderr, `docvault - resilient client for the remote document store

Usage:
  docvault [-config path] <command> [arguments]

Commands:
  check                               verify connectivity and credentials
  containers                          list containers
  create-container [flags] <name>     create a container
  init-schema <container>             declare the standard metadata columns
  ls <container> [path]               list files in a folder
  upload [flags] <container> <file>   upload a file
  download [-o file] <container> <item>
                                      download a file
  rm <container> <item>               delete a file
  query [flags] <container>           list documents with metadata
  pending                             list interrupted chunked uploads
`)
}
