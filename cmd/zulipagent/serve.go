package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Clearner1/ZulipAgent/internal/configutil"
	"github.com/Clearner1/ZulipAgent/internal/logutil"
	"github.com/Clearner1/ZulipAgent/internal/statepaths"
	"github.com/Clearner1/ZulipAgent/run"
	"github.com/Clearner1/ZulipAgent/scheduler"
	"github.com/Clearner1/ZulipAgent/session"
	"github.com/Clearner1/ZulipAgent/topic"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent: watch the trigger directory and read live messages from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			command := viper.GetStringSlice("executor.command")
			if len(command) == 0 {
				return fmt.Errorf("missing executor.command (argv of the turn executor process)")
			}

			stream := strings.TrimSpace(configutil.FlagOrViperString(cmd, "stream", "console.stream"))
			topicName := strings.TrimSpace(configutil.FlagOrViperString(cmd, "topic", "console.topic"))
			sender := strings.TrimSpace(configutil.FlagOrViperString(cmd, "sender", "console.sender"))

			host := &eventHost{
				registry:  topic.NewRegistry(),
				transport: &consoleTransport{out: os.Stdout},
				executor:  &run.CommandExecutor{Command: command},
				sync:      &session.Synchronizer{Logger: logger},
				botName:   viper.GetString("bot.name"),
				logger:    logger,
			}

			sched, err := scheduler.New(scheduler.Options{
				Dir:            statepaths.TriggersDir(),
				Handler:        host,
				Logger:         logger,
				DebounceWindow: configutil.FlagOrViperDuration(cmd, "debounce-window", "scheduler.debounce_window"),
				RequeueDelay:   configutil.FlagOrViperDuration(cmd, "requeue-delay", "scheduler.requeue_delay"),
				ReadRetries:    configutil.FlagOrViperInt(cmd, "read-retries", "scheduler.read_retries"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := sched.Start(ctx); err != nil {
				return err
			}
			logger.Info("agent_started",
				"triggers_dir", statepaths.TriggersDir(),
				"topics_dir", statepaths.TopicsDir(),
				"stream", stream,
				"topic", topicName,
			)

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(os.Stdin)
				sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
				for sc.Scan() {
					select {
					case lines <- sc.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

		intake:
			for {
				select {
				case <-ctx.Done():
					break intake
				case line, ok := <-lines:
					if !ok {
						break intake
					}
					text := strings.TrimSpace(line)
					if text == "" {
						continue
					}
					host.Submit(ctx, stream, topicName, sender, text)
				}
			}

			// Intake is closed first; pending schedules are canceled, then
			// runs already in flight drain.
			logger.Info("agent_shutdown")
			stop()
			sched.Stop()
			host.Wait()
			return nil
		},
	}

	cmd.Flags().String("stream", "console", "Stream name for live stdin messages.")
	cmd.Flags().String("topic", "general", "Topic name for live stdin messages.")
	cmd.Flags().String("sender", "operator", "Sender name for live stdin messages.")
	cmd.Flags().Duration("debounce-window", 100*time.Millisecond, "Debounce window for trigger-file notifications.")
	cmd.Flags().Duration("requeue-delay", 10*time.Second, "Retry delay for events against a busy topic.")
	cmd.Flags().Int("read-retries", 3, "Read attempts for a freshly notified trigger file.")

	return cmd
}
