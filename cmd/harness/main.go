// Package main runs the mentionflow harness: the worker cohort that drains
// the Queue Store, the Ingress Adapter(s) that admit chat-platform mentions
// into it, and the admin HTTP surface operators use to watch and nudge it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/mentionflow/harness/internal/chatplatform"
	"github.com/mentionflow/harness/internal/harness"
	"github.com/mentionflow/harness/internal/queue"
	"github.com/mentionflow/harness/internal/worker"
)

const (
	version = "0.1.0-dev"
	name    = "mentionflow-harness"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	cfg := harness.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	logger.Info("loaded harness configuration",
		slog.Int("workers", cfg.Workers),
		slog.Bool("kafka_enabled", cfg.KafkaEnabled()),
		slog.String("admin_addr", cfg.AdminAddr),
		slog.Bool("chat_bot_token_set", cfg.ChatBotToken != ""),
		slog.Bool("chat_app_token_set", cfg.ChatAppToken != ""),
	)

	orchestrator := harness.NewOrchestrator(cfg, harness.Deps{
		Chat:      loggingChatClient{logger: logger},
		Processor: replyProcessor,
	})

	if err := orchestrator.Run(context.Background()); err != nil {
		logger.Error("harness exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("mentionflow harness stopped")
}

// loggingChatClient is the default chatplatform.Client: it logs the reply
// instead of calling a real chat platform, since the transport itself is out
// of scope (spec.md §1). A real deployment supplies its own chatplatform.Client.
type loggingChatClient struct {
	logger *slog.Logger
}

func (c loggingChatClient) Reply(_ context.Context, payload json.RawMessage, text string) error {
	c.logger.Info("reply", slog.String("payload", string(payload)), slog.String("text", text))

	return nil
}

var _ chatplatform.Client = loggingChatClient{}

// replyProcessor is the default worker.Processor: it acknowledges the
// mention by replying with a static message. Real deployments pass their
// own Processor via harness.Deps.
func replyProcessor(ctx context.Context, hctx *worker.Context, event *queue.Event) error {
	return hctx.Chat.Reply(ctx, event.Payload, "received: "+event.Kind)
}
