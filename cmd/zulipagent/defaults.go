package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Global
	viper.SetDefault("state_dir", "~/.zulipagent")
	viper.SetDefault("bot.name", "zulip-agent")

	// Turn executor: argv of the external process invoked once per turn.
	viper.SetDefault("executor.command", []string{})

	// Trigger scheduler
	viper.SetDefault("scheduler.dir_name", "triggers")
	viper.SetDefault("scheduler.debounce_window", 100*time.Millisecond)
	viper.SetDefault("scheduler.requeue_delay", 10*time.Second)
	viper.SetDefault("scheduler.read_retries", 3)

	// Topic state
	viper.SetDefault("topics.dir_name", "topics")

	// Console transport (serve reads stdin, writes stdout).
	viper.SetDefault("console.stream", "console")
	viper.SetDefault("console.topic", "general")
	viper.SetDefault("console.sender", "operator")
}
