package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/yeisme/fastlink/pkg/app"
	"github.com/yeisme/fastlink/pkg/cache"
	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/ingest"
	"github.com/yeisme/fastlink/pkg/internal/storage"
)

var (
	submitReq ingest.UploadRequest

	ingestCmd = &cobra.Command{
		Use:   "ingest",
		Short: "Upload queue commands (requires a shared kv and mq)",
	}

	// 受理一个已暂存到对象存储的文件，校验由 origin 的 worker 完成.
	ingestSubmitCmd = &cobra.Command{
		Use:   "submit",
		Short: "enqueue a staged object for ingestion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIngest(cmd.Context(), func(ctx context.Context, svc *ingest.Service) error {
				st, err := svc.Enqueue(ctx, submitReq)
				if err != nil {
					return err
				}

				return printJSON(cmd, st)
			})
		},
	}

	ingestStatusCmd = &cobra.Command{
		Use:   "status <pending_id>",
		Short: "show the state of an upload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withIngest(cmd.Context(), func(ctx context.Context, svc *ingest.Service) error {
				st, err := svc.Status(ctx, args[0])
				if err != nil {
					return err
				}

				return printJSON(cmd, st)
			})
		},
	}
)

// withIngest 只初始化受理与查询需要的 KV 和 MQ.
func withIngest(parent context.Context, fn func(ctx context.Context, svc *ingest.Service) error) error {
	if parent == nil {
		parent = context.Background()
	}

	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	defer cancel()

	cfg := configs.GetConfig()

	mgr, err := storage.New(ctx, cfg, storage.PartKV|storage.PartMQ)
	if err != nil {
		return err
	}
	defer mgr.Close()

	tracker := ingest.NewTracker(cache.NewCache(mgr.KV, cache.WithPrefix(app.UploadStatePrefix)), cfg.Ingest.StateTTLDuration())
	svc := ingest.New(cfg.Ingest, ingest.Deps{
		Publisher: mgr.MQ.Publisher(),
		Tracker:   tracker,
		Producer:  configs.AppName + "-cli",
	})

	return fn(ctx, svc)
}

func printJSON(cmd *cobra.Command, v any) error {
	b, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))

	return nil
}

// registerIngestCommands 注册上传队列相关命令.
func registerIngestCommands() {
	f := ingestSubmitCmd.Flags()
	f.StringVar(&submitReq.FileName, "file-name", "", "original file name")
	f.Int64Var(&submitReq.Size, "size", 0, "object size in bytes")
	f.StringVar(&submitReq.Locator, "locator", "", "staged object key")
	f.StringVar(&submitReq.MimeType, "mime-type", "", "declared mime type")

	_ = ingestSubmitCmd.MarkFlagRequired("file-name")
	_ = ingestSubmitCmd.MarkFlagRequired("locator")

	ingestCmd.AddCommand(ingestSubmitCmd, ingestStatusCmd)
	rootCmd.AddCommand(ingestCmd)
}
