package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"

	"coinfactory/internal/cli"
	"coinfactory/internal/game"
)

// Command is a factory write made while the API was unreachable.
type Command = game.ReplayCommand

func queuePath() (string, error) {
	dir, err := cli.BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	commands = append(commands, cmd)
	return Save(commands)
}

// Retain keeps the commands whose replay did not succeed. Results are matched
// by idempotency key; a duplicate already landed and is dropped.
func Retain(commands []Command, results []game.ReplayResult) []Command {
	status := make(map[string]string, len(results))
	for _, r := range results {
		status[r.IdempotencyKey] = r.Status
	}
	out := make([]Command, 0, len(commands))
	for _, c := range commands {
		switch status[c.IdempotencyKey] {
		case "ok", "duplicate":
			continue
		}
		out = append(out, c)
	}
	return out
}
