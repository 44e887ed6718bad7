package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

const secretBytes = 32

type ClientServicer interface {
	Create(ctx context.Context, name string) (Client, string, error)
	Authenticate(ctx context.Context, apiKey string) (Client, error)
}

type ClientService struct {
	repo ClientRepository
	log  *slog.Logger
	cost int
}

func NewClientService(repo ClientRepository, log *slog.Logger) *ClientService {
	return &ClientService{
		repo: repo,
		log:  log.With(slog.String("component", "clients")),
		cost: bcrypt.DefaultCost,
	}
}

// Create регистрирует клиента и возвращает ключ вида <clientID>.<secret>.
// Секрет хранится только в виде bcrypt-хэша.
func (s *ClientService) Create(ctx context.Context, name string) (Client, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Client{}, "", fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return Client{}, "", fmt.Errorf("generate secret: %w", err)
	}
	secret := hex.EncodeToString(buf)

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return Client{}, "", fmt.Errorf("Хэш секрета: %w", err)
	}

	c := Client{
		ID:         uuid.NewString(),
		Name:       name,
		SecretHash: string(hash),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.repo.CreateClient(ctx, c); err != nil {
		return Client{}, "", fmt.Errorf("create client: %w", err)
	}

	s.log.Info("client created", "client_id", c.ID, "name", c.Name)
	return c, c.ID + "." + secret, nil
}

func (s *ClientService) Authenticate(ctx context.Context, apiKey string) (Client, error) {
	id, secret, ok := strings.Cut(apiKey, ".")
	if !ok || secret == "" {
		return Client{}, ErrUnauthorized
	}
	if _, err := uuid.Parse(id); err != nil {
		return Client{}, ErrUnauthorized
	}

	c, err := s.repo.FindClient(ctx, id)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return Client{}, ErrUnauthorized
		}
		return Client{}, fmt.Errorf("find client: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(c.SecretHash), []byte(secret)); err != nil {
		return Client{}, ErrUnauthorized
	}

	return c, nil
}
