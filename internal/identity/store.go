// Package identity persists the anonymous profile sent to the pairing server.
package identity

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	keyUserID    = "chatAnon_userId"
	keyGender    = "chatAnon_gender"
	keyInterests = "chatAnon_interests"
)

var ErrInvalidUserData = errors.New("invalid user data")

// Genders accepted by SetUserData.
var Genders = []string{"male", "female"}

// Interests accepted by SetUserData.
var Interests = []string{"gaming", "music", "photography", "reading", "coffee", "travel", "art", "programming"}

var validate = validator.New()

// UserData is the stored profile. Fields missing from the store are empty.
type UserData struct {
	UserID    string
	Gender    string
	Interests []string
}

type profileRequest struct {
	Gender    string   `validate:"required,oneof=male female"`
	Interests []string `validate:"unique,dive,oneof=gaming music photography reading coffee travel art programming"`
}

// Store keeps the profile in badger. The user id is generated on the first
// SetUserData and never regenerated.
type Store struct {
	db  *badger.DB
	log *slog.Logger
}

// Open opens (or creates) the store under dir. An empty dir keeps everything in memory.
func Open(dir string, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity store: %w", err)
	}
	return NewStore(db, log), nil
}

// NewStore wraps an already opened database.
func NewStore(db *badger.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log}
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// HasCompleteUserData reports whether both the user id and the gender are stored.
func (s *Store) HasCompleteUserData() bool {
	data, err := s.GetUserData()
	if err != nil {
		s.log.Error("Failed to read user data", "error", err)
		return false
	}
	return data.UserID != "" && data.Gender != ""
}

// GetUserData returns the stored profile.
func (s *Store) GetUserData() (UserData, error) {
	var data UserData
	err := s.db.View(func(txn *badger.Txn) error {
		id, err := getString(txn, keyUserID)
		if err != nil {
			return err
		}
		gender, err := getString(txn, keyGender)
		if err != nil {
			return err
		}
		interests, err := getInterests(txn)
		if err != nil {
			return err
		}
		data = UserData{UserID: id, Gender: gender, Interests: interests}
		return nil
	})
	if err != nil {
		return UserData{}, fmt.Errorf("failed to read user data: %w", err)
	}
	return data, nil
}

// SetUserData validates and stores gender and interests, generating the user id if absent.
func (s *Store) SetUserData(gender string, interests []string) error {
	if err := validate.Struct(profileRequest{Gender: gender, Interests: interests}); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUserData, err)
	}

	list, err := structpb.NewList(lo.Map(interests, func(item string, _ int) any { return item }))
	if err != nil {
		return fmt.Errorf("failed to encode interests: %w", err)
	}
	encoded, err := proto.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode interests: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		id, err := getString(txn, keyUserID)
		if err != nil {
			return err
		}
		if id == "" {
			id = uuid.NewString()
			s.log.Info("Generated anonymous user id", "user_id", id)
			if err := txn.Set([]byte(keyUserID), []byte(id)); err != nil {
				return err
			}
		}
		if err := txn.Set([]byte(keyGender), []byte(gender)); err != nil {
			return err
		}
		return txn.Set([]byte(keyInterests), encoded)
	})
}

// Clear removes the whole profile, including the user id.
func (s *Store) Clear() error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{keyUserID, keyGender, keyInterests} {
			if err := txn.Delete([]byte(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func getInterests(txn *badger.Txn) ([]string, error) {
	item, err := txn.Get([]byte(keyInterests))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list structpb.ListValue
	err = item.Value(func(val []byte) error {
		return proto.Unmarshal(val, &list)
	})
	if err != nil {
		return nil, err
	}
	return lo.FilterMap(list.AsSlice(), func(item any, _ int) (string, bool) {
		s, ok := item.(string)
		return s, ok
	}), nil
}
