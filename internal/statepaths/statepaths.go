package statepaths

import (
	"path/filepath"

	"github.com/Clearner1/ZulipAgent/internal/pathutil"
	"github.com/Clearner1/ZulipAgent/topic"
	"github.com/spf13/viper"
)

const (
	TopicLogFilename     = "log.jsonl"
	TopicHistoryFilename = "history.json"
	NotesFilename        = "NOTES.md"
)

func StateDir() string {
	return pathutil.ResolveStateDir(viper.GetString("state_dir"))
}

func TriggersDir() string {
	return pathutil.ResolveStateChildDir(
		viper.GetString("state_dir"),
		viper.GetString("scheduler.dir_name"),
		"triggers",
	)
}

func TopicsDir() string {
	return pathutil.ResolveStateChildDir(
		viper.GetString("state_dir"),
		viper.GetString("topics.dir_name"),
		"topics",
	)
}

func TopicDir(id topic.Identity) string {
	return id.Dir(TopicsDir())
}

func TopicLogPath(id topic.Identity) string {
	return filepath.Join(TopicDir(id), TopicLogFilename)
}

func TopicHistoryPath(id topic.Identity) string {
	return filepath.Join(TopicDir(id), TopicHistoryFilename)
}

func NotesPath() string {
	return filepath.Join(StateDir(), NotesFilename)
}
