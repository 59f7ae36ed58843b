package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/morozRed/medkb/internal/fileutil"
)

const (
	StateFile            = ".medkb-state.json"
	CurrentStateVersion  = "2"
	CurrentFormatVersion = "clips-v1"
)

// ArtifactState tracks one artifact as of the last successful load.
type ArtifactState struct {
	Hash      string    `json:"hash"`
	Entries   int       `json:"entries,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State records what the knowledge base was built from.
type State struct {
	Version       string                   `json:"version"`
	FormatVersion string                   `json:"format_version,omitempty"`
	Evaluator     string                   `json:"evaluator,omitempty"`
	UpdatedAt     time.Time                `json:"updated_at"`
	Diseases      int                      `json:"diseases"`
	Symptoms      int                      `json:"symptoms"`
	Artifacts     map[string]ArtifactState `json:"artifacts"`
}

// NewState creates a new empty state
func NewState() *State {
	return &State{
		Version:       CurrentStateVersion,
		FormatVersion: CurrentFormatVersion,
		Artifacts:     make(map[string]ArtifactState),
	}
}

// Load reads state from the data directory. A missing file is an empty state.
func Load(dataDir string) (*State, error) {
	path := filepath.Join(dataDir, StateFile)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}

	migrateState(&state)

	return &state, nil
}

// Save writes state to the data directory.
func (s *State) Save(dataDir string) error {
	if s.Version == "" {
		s.Version = CurrentStateVersion
	}
	if s.FormatVersion == "" {
		s.FormatVersion = CurrentFormatVersion
	}
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]ArtifactState)
	}

	s.UpdatedAt = time.Now()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dataDir, StateFile)
	return fileutil.WriteFileAtomic(path, data, 0644)
}

// SetArtifact updates the hash and entry count for an artifact
func (s *State) SetArtifact(name, hash string, entries int) {
	s.Artifacts[name] = ArtifactState{
		Hash:      hash,
		Entries:   entries,
		UpdatedAt: time.Now(),
	}
}

// GetArtifactHash returns the stored hash for an artifact
func (s *State) GetArtifactHash(name string) (string, bool) {
	as, ok := s.Artifacts[name]
	if !ok {
		return "", false
	}
	return as.Hash, true
}

// HasChanged returns true if the artifact hash differs from stored
func (s *State) HasChanged(name, currentHash string) bool {
	storedHash, ok := s.GetArtifactHash(name)
	if !ok {
		return true
	}
	return storedHash != currentHash
}

// ChangedArtifacts returns new or modified artifacts, sorted.
func (s *State) ChangedArtifacts(currentHashes map[string]string) []string {
	changed := make([]string, 0)
	for name, hash := range currentHashes {
		if s.HasChanged(name, hash) {
			changed = append(changed, name)
		}
	}
	sort.Strings(changed)
	return changed
}

// DeletedArtifacts returns tracked artifacts missing from currentHashes, sorted.
func (s *State) DeletedArtifacts(currentHashes map[string]string) []string {
	deleted := make([]string, 0)
	for name := range s.Artifacts {
		if _, ok := currentHashes[name]; !ok {
			deleted = append(deleted, name)
		}
	}
	sort.Strings(deleted)
	return deleted
}

// Hashes returns the stored hash of every artifact.
func (s *State) Hashes() map[string]string {
	out := make(map[string]string, len(s.Artifacts))
	for name, as := range s.Artifacts {
		out[name] = as.Hash
	}
	return out
}

func migrateState(s *State) {
	if s.Artifacts == nil {
		s.Artifacts = make(map[string]ArtifactState)
	}
	if s.FormatVersion == "" {
		s.FormatVersion = CurrentFormatVersion
	}

	switch s.Version {
	case "", "1":
		s.Version = CurrentStateVersion
	case CurrentStateVersion:
		// no-op
	default:
		// Keep unknown versions untouched but ensure required maps are initialized.
	}
}
