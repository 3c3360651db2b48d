package unit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	contractsv1 "truevote/contracts/gen/events/v1"
)

func TestContractJSONArtifactsAreValid(t *testing.T) {
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(root, "contracts/events/v1/*.json"))
	if err != nil {
		t.Fatalf("invalid glob pattern: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no contract json artifacts found")
	}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		var payload any
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("invalid json contract file %s: %v", path, err)
		}
	}
}

func TestEveryLedgerEventTypeHasSchema(t *testing.T) {
	root, err := findRepoRoot()
	if err != nil {
		t.Fatalf("resolve repo root: %v", err)
	}

	titles := map[string]string{}
	matches, _ := filepath.Glob(filepath.Join(root, "contracts/events/v1/*.json"))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		var schema struct {
			Title    string   `json:"title"`
			Required []string `json:"required"`
		}
		if err := json.Unmarshal(data, &schema); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
		titles[schema.Title] = strings.Join(schema.Required, ",")
	}

	for _, eventType := range []string{
		contractsv1.EventTypeCampaignCreated,
		contractsv1.EventTypeCandidateAdded,
		contractsv1.EventTypeVoteCast,
	} {
		if _, ok := titles[eventType]; !ok {
			t.Fatalf("missing schema for %s", eventType)
		}
	}

	voteFields := strings.Split(titles[contractsv1.EventTypeVoteCast], ",")
	sort.Strings(voteFields)
	encoded, err := json.Marshal(contractsv1.VoteCast{CampaignID: 1, CandidateIndex: 0, NewVoteCount: 1, TotalVotes: 1})
	if err != nil {
		t.Fatalf("encode vote.cast: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decode vote.cast: %v", err)
	}
	for _, field := range voteFields {
		if _, ok := decoded[field]; !ok {
			t.Fatalf("vote.cast payload is missing required field %s", field)
		}
	}
	if _, leaked := decoded["voter_id"]; leaked {
		t.Fatalf("vote.cast must not carry the voter identity")
	}
}

func findRepoRoot() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	current := wd
	for {
		if _, err := os.Stat(filepath.Join(current, "go.mod")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("go.mod not found from %s", wd)
		}
		current = parent
	}
}
