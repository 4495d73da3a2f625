package main

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/kalambet/dialbook/internal/api"
	"github.com/kalambet/dialbook/internal/config"
	"github.com/kalambet/dialbook/internal/phone"
	"github.com/kalambet/dialbook/internal/phonebook"
)

// phoneBook is what the data commands read and mutate. A running server
// keeps its own copy of the list, so while one answers every command goes
// through its API; otherwise the database is opened directly.
type phoneBook interface {
	Plan() phone.Plan
	List() ([]phonebook.SavedPhone, error)
	Save(raw string) (phonebook.SavedPhone, error)
	Delete(id string) error
	Clear() error
	Close() error
}

// openPhoneBook picks the server or the local database.
func openPhoneBook(cmd *cobra.Command) (phoneBook, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	client := newAPIClient(cfg)
	if client.healthy(cmd.Context()) {
		slog.Debug("routing through running server", "url", client.baseURL)
		return &remoteBook{ctx: cmd.Context(), client: client, plan: cfg.Phone.Plan()}, nil
	}

	h, err := openCLIBook(cmd)
	if err != nil {
		return nil, err
	}
	return localBook{h}, nil
}

// resolve finds the record whose id equals or uniquely starts with prefix.
func resolve(b phoneBook, prefix string) (phonebook.SavedPhone, error) {
	phones, err := b.List()
	if err != nil {
		return phonebook.SavedPhone{}, err
	}
	return phonebook.ResolveID(phones, prefix)
}

type localBook struct {
	*bookHandle
}

func (b localBook) Plan() phone.Plan { return b.book.Plan() }

func (b localBook) List() ([]phonebook.SavedPhone, error) { return b.book.List(), nil }

func (b localBook) Save(raw string) (phonebook.SavedPhone, error) { return b.book.Save(raw) }

func (b localBook) Delete(id string) error { return b.book.Delete(id) }

func (b localBook) Clear() error { return b.book.Clear() }

type remoteBook struct {
	ctx    context.Context
	client *apiClient
	plan   phone.Plan
}

func (b *remoteBook) Plan() phone.Plan { return b.plan }

func (b *remoteBook) List() ([]phonebook.SavedPhone, error) {
	resp, err := b.client.get(b.ctx, "/phones")
	if err != nil {
		return nil, err
	}
	var models []api.PhoneModel
	if err := decodeJSON(resp, &models); err != nil {
		return nil, err
	}

	phones := make([]phonebook.SavedPhone, len(models))
	for i, m := range models {
		phones[i] = fromModel(m)
	}
	return phones, nil
}

func (b *remoteBook) Save(raw string) (phonebook.SavedPhone, error) {
	resp, err := b.client.post(b.ctx, "/phones", map[string]string{"number": raw})
	if err != nil {
		return phonebook.SavedPhone{}, err
	}
	var m api.PhoneModel
	if err := decodeJSON(resp, &m); err != nil {
		return phonebook.SavedPhone{}, err
	}
	return fromModel(m), nil
}

func (b *remoteBook) Delete(id string) error {
	resp, err := b.client.delete(b.ctx, "/phones/"+url.PathEscape(id))
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

func (b *remoteBook) Clear() error {
	resp, err := b.client.delete(b.ctx, "/phones")
	if err != nil {
		return err
	}
	return decodeJSON(resp, nil)
}

func (b *remoteBook) Close() error { return nil }

func fromModel(m api.PhoneModel) phonebook.SavedPhone {
	return phonebook.SavedPhone{ID: m.ID, Number: m.Number, Timestamp: m.Timestamp}
}
