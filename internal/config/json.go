package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/mindvault/internal/flagx"
)

// jsonDuration lets JSON specify durations either as strings like "30m" or
// as integer nanoseconds.
type jsonDuration struct {
	time.Duration
}

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case float64:
		d.Duration = time.Duration(val)
		return nil
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("invalid duration %q", string(data))
	}
}

// JsonConfig is a DTO used exclusively for JSON unmarshalling; values are
// copied into the runtime Config afterwards. Absent fields leave the
// corresponding Config value untouched.
type JsonConfig struct {
	VaultDir         *string       `json:"vault_dir"`
	InferenceBaseURL *string       `json:"inference_base_url"`
	ChatModel        *string       `json:"chat_model"`
	EmbedModel       *string       `json:"embed_model"`
	InferenceTimeout *jsonDuration `json:"inference_timeout"`
	SessionTimeout   *jsonDuration `json:"session_timeout"`
	LogLevel         *string       `json:"log_level"`
	HistoryTurns     *int          `json:"history_turns"`
	TopK             *int          `json:"top_k"`
}

// parseJson overlays cfg with values from the JSON file named by the -c or
// -config flag. No flag, no JSON. Panics on read or unmarshal errors; the
// file was explicitly requested, so silently ignoring it would be worse.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.VaultDir != nil {
		cfg.VaultDir = *jc.VaultDir
	}
	if jc.InferenceBaseURL != nil {
		cfg.InferenceBaseURL = *jc.InferenceBaseURL
	}
	if jc.ChatModel != nil {
		cfg.ChatModel = *jc.ChatModel
	}
	if jc.EmbedModel != nil {
		cfg.EmbedModel = *jc.EmbedModel
	}
	if jc.InferenceTimeout != nil {
		cfg.InferenceTimeout = jc.InferenceTimeout.Duration
	}
	if jc.SessionTimeout != nil {
		cfg.SessionTimeout = jc.SessionTimeout.Duration
	}
	if jc.LogLevel != nil {
		cfg.LogLevel = *jc.LogLevel
	}
	if jc.HistoryTurns != nil {
		cfg.HistoryTurns = *jc.HistoryTurns
	}
	if jc.TopK != nil {
		cfg.TopK = *jc.TopK
	}
}
