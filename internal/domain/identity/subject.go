package identity

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the three principal variants.
type Kind int

const (
	KindLocal Kind = iota
	KindDirectory
	KindFederated
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindDirectory:
		return "directory"
	case KindFederated:
		return "federated"
	}
	return "unknown"
}

// Subject is the typed form of the tagged subject identifier carried inside
// a session credential. The string prefixes ("ldap_", "google_", bare
// numeric) exist only at this serialization boundary; in-memory code passes
// Subject or a Principal, never the tagged string.
type Subject struct {
	Kind    Kind
	Name    string // account name (directory) or provider id (federated)
	LocalID int64  // numeric id (local)
}

const (
	directoryTag = "ldap_"
	federatedTag = "google_"
)

// String encodes the subject into its tagged wire form.
func (s Subject) String() string {
	switch s.Kind {
	case KindDirectory:
		return directoryTag + s.Name
	case KindFederated:
		return federatedTag + s.Name
	default:
		return strconv.FormatInt(s.LocalID, 10)
	}
}

// ParseSubject decodes a tagged subject string. The variant is recoverable
// deterministically from the tag alone, without a store lookup.
func ParseSubject(tag string) (Subject, error) {
	switch {
	case strings.HasPrefix(tag, directoryTag):
		name := tag[len(directoryTag):]
		if name == "" {
			return Subject{}, fmt.Errorf("empty directory account in subject %q", tag)
		}
		return Subject{Kind: KindDirectory, Name: name}, nil
	case strings.HasPrefix(tag, federatedTag):
		id := tag[len(federatedTag):]
		if id == "" {
			return Subject{}, fmt.Errorf("empty provider id in subject %q", tag)
		}
		return Subject{Kind: KindFederated, Name: id}, nil
	default:
		id, err := strconv.ParseInt(tag, 10, 64)
		if err != nil {
			return Subject{}, fmt.Errorf("malformed subject %q", tag)
		}
		return Subject{Kind: KindLocal, LocalID: id}, nil
	}
}
