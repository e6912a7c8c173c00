package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"

	"github.com/soundprediction/careergraph/pkg/types"
)

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n(.*?)\\s*```$")

// DecodeResume decodes a JSON or YAML resume and validates it.
func DecodeResume(data []byte) (*types.Resume, error) {
	var in ResumeInput
	if err := decode(data, &in); err != nil {
		return nil, err
	}
	return ValidateResume(&in)
}

// DecodeJob decodes a JSON or YAML job posting and validates it.
func DecodeJob(data []byte) (*types.JobPosting, error) {
	var in JobInput
	if err := decode(data, &in); err != nil {
		return nil, err
	}
	return ValidateJob(&in)
}

// decode accepts JSON, including the slightly broken JSON language models
// tend to emit (trailing commas, markdown fences, truncated output), and
// falls back to YAML for anything that does not look like a JSON object.
func decode(data []byte, v any) error {
	body := bytes.TrimSpace(data)
	if m := codeFence.FindSubmatch(body); m != nil {
		body = bytes.TrimSpace(m[1])
	}
	if len(body) == 0 {
		return &types.ValidationError{Reason: "empty record"}
	}

	if body[0] != '{' {
		if err := yaml.Unmarshal(body, v); err != nil {
			return &types.ValidationError{Reason: "invalid YAML: " + err.Error()}
		}
		return nil
	}

	err := json.Unmarshal(body, v)
	if err == nil {
		return nil
	}
	if field := typeErrorField(err); field != "" {
		return types.NewValidationError(field, "%v", err)
	}

	repaired, rerr := jsonrepair.JSONRepair(string(body))
	if rerr != nil {
		return &types.ValidationError{Reason: "invalid JSON: " + err.Error()}
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		if field := typeErrorField(err); field != "" {
			return types.NewValidationError(field, "%v", err)
		}
		return &types.ValidationError{Reason: "invalid JSON: " + err.Error()}
	}
	return nil
}

func typeErrorField(err error) string {
	var terr *json.UnmarshalTypeError
	if errors.As(err, &terr) {
		if terr.Field != "" {
			return terr.Field
		}
		return "record"
	}
	return ""
}
