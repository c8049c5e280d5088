package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ClientInput carries the caller-controlled fields of a client record.
type ClientInput struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
}

// ClientService manages clients, their projects, and the account heads that
// group their cashbook entries. Creating a client always creates a matching
// account head; deleting a client cascades through everything the client
// owns.
type ClientService interface {
	CreateClient(ctx context.Context, input ClientInput) (*Client, error)
	UpdateClient(ctx context.Context, clientID int, input ClientInput) (*Client, error)
	DeleteClient(ctx context.Context, clientID int) error
	GetClient(ctx context.Context, clientID int) (*Client, error)
	GetClients(ctx context.Context) ([]Client, error)

	CreateProject(ctx context.Context, clientID int, name, location string) (*Project, error)
	GetProjects(ctx context.Context, clientID int) ([]Project, error)
	DeleteProject(ctx context.Context, projectID int) error

	GetAccountHeads(ctx context.Context) ([]AccountHead, error)
}

type clientService struct {
	pool *pgxpool.Pool
}

func NewClientService(pool *pgxpool.Pool) ClientService {
	return &clientService{pool: pool}
}

func (s *clientService) CreateClient(ctx context.Context, input ClientInput) (*Client, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("client name is required: %w", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var c Client
	err = tx.QueryRow(ctx, `
		INSERT INTO clients (name, contact_person, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, name, contact_person, email, phone, address, created_at
	`, input.Name, input.ContactPerson, input.Email, input.Phone, input.Address).Scan(
		&c.ID, &c.Name, &c.ContactPerson, &c.Email, &c.Phone, &c.Address, &c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert client: %w", err)
	}

	// Every client gets an account head so its cashbook entries have a home.
	// The explicit client_id link means head-to-client resolution never
	// depends on name equality.
	_, err = tx.Exec(ctx,
		"INSERT INTO account_heads (name, category, client_id) VALUES ($1, $2, $3)",
		c.Name, HeadClient, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create account head for client %q: %w", c.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit client creation: %w", err)
	}
	return &c, nil
}

func (s *clientService) UpdateClient(ctx context.Context, clientID int, input ClientInput) (*Client, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("client name is required: %w", ErrValidation)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var c Client
	err = tx.QueryRow(ctx, `
		UPDATE clients
		SET name = $1, contact_person = $2, email = $3, phone = $4, address = $5
		WHERE id = $6
		RETURNING id, name, contact_person, email, phone, address, created_at
	`, input.Name, input.ContactPerson, input.Email, input.Phone, input.Address, clientID).Scan(
		&c.ID, &c.Name, &c.ContactPerson, &c.Email, &c.Phone, &c.Address, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", clientID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update client %d: %w", clientID, err)
	}

	// Keep the head's display name in sync; the link itself is by id.
	_, err = tx.Exec(ctx, "UPDATE account_heads SET name = $1 WHERE client_id = $2", c.Name, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to rename account head for client %d: %w", clientID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit client update: %w", err)
	}
	return &c, nil
}

// DeleteClient removes the client and everything hanging off it, children
// before parents, inside one transaction: allocations, payment-linked and
// head-linked cashbook entries, payments, invoices, sales, projects, the
// account head, and finally the client row.
func (s *clientService) DeleteClient(ctx context.Context, clientID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)", clientID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check client %d: %w", clientID, err)
	}
	if !exists {
		return fmt.Errorf("client %d: %w", clientID, ErrNotFound)
	}

	steps := []struct {
		desc string
		sql  string
	}{
		{"delete allocations against the client's invoices", `
			DELETE FROM cashbook_payment_allocations
			WHERE invoice_id IN (
				SELECT i.id FROM invoices i
				JOIN sales s ON s.id = i.sale_id
				WHERE s.client_id = $1)`},
		{"delete allocations from the client's cashbook entries", `
			DELETE FROM cashbook_payment_allocations
			WHERE cashbook_entry_id IN (
				SELECT e.id FROM cashbook_entries e
				WHERE e.account_head_id IN (SELECT id FROM account_heads WHERE client_id = $1)
				   OR (e.reference_type = 'payment' AND e.reference_id IN (
						SELECT p.id FROM payments p
						JOIN sales s ON s.id = p.sale_id
						WHERE s.client_id = $1)))`},
		{"delete the client's cashbook entries", `
			DELETE FROM cashbook_entries e
			WHERE e.account_head_id IN (SELECT id FROM account_heads WHERE client_id = $1)
			   OR (e.reference_type = 'payment' AND e.reference_id IN (
					SELECT p.id FROM payments p
					JOIN sales s ON s.id = p.sale_id
					WHERE s.client_id = $1))`},
		{"delete payments", `
			DELETE FROM payments WHERE sale_id IN (SELECT id FROM sales WHERE client_id = $1)`},
		{"delete invoices", `
			DELETE FROM invoices WHERE sale_id IN (SELECT id FROM sales WHERE client_id = $1)`},
		{"delete sales", `DELETE FROM sales WHERE client_id = $1`},
		{"delete projects", `DELETE FROM projects WHERE client_id = $1`},
		{"delete account head", `DELETE FROM account_heads WHERE client_id = $1`},
		{"delete client", `DELETE FROM clients WHERE id = $1`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, step.sql, clientID); err != nil {
			return fmt.Errorf("failed to %s for client %d: %w", step.desc, clientID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit client deletion: %w", err)
	}
	return nil
}

func (s *clientService) GetClient(ctx context.Context, clientID int) (*Client, error) {
	var c Client
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, contact_person, email, phone, address, created_at
		FROM clients WHERE id = $1
	`, clientID).Scan(&c.ID, &c.Name, &c.ContactPerson, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("client %d: %w", clientID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to fetch client %d: %w", clientID, err)
	}
	return &c, nil
}

func (s *clientService) GetClients(ctx context.Context) ([]Client, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, contact_person, email, phone, address, created_at
		FROM clients ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []Client
	for rows.Next() {
		var c Client
		if err := rows.Scan(&c.ID, &c.Name, &c.ContactPerson, &c.Email, &c.Phone, &c.Address, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (s *clientService) CreateProject(ctx context.Context, clientID int, name, location string) (*Project, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("project name is required: %w", ErrValidation)
	}

	var p Project
	err := s.pool.QueryRow(ctx, `
		INSERT INTO projects (client_id, name, location)
		VALUES ($1, $2, $3)
		RETURNING id, client_id, name, location, created_at
	`, clientID, name, location).Scan(&p.ID, &p.ClientID, &p.Name, &p.Location, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert project for client %d: %w", clientID, err)
	}
	return &p, nil
}

func (s *clientService) GetProjects(ctx context.Context, clientID int) ([]Project, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, client_id, name, location, created_at
		FROM projects WHERE client_id = $1 ORDER BY name
	`, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.ClientID, &p.Name, &p.Location, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (s *clientService) DeleteProject(ctx context.Context, projectID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Sales keep their history; they just lose the project link.
	if _, err := tx.Exec(ctx, "UPDATE sales SET project_id = NULL WHERE project_id = $1", projectID); err != nil {
		return fmt.Errorf("failed to detach sales from project %d: %w", projectID, err)
	}

	tag, err := tx.Exec(ctx, "DELETE FROM projects WHERE id = $1", projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project %d: %w", projectID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit project deletion: %w", err)
	}
	return nil
}

func (s *clientService) GetAccountHeads(ctx context.Context) ([]AccountHead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, category, client_id, created_at
		FROM account_heads ORDER BY category, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query account heads: %w", err)
	}
	defer rows.Close()

	var heads []AccountHead
	for rows.Next() {
		var h AccountHead
		if err := rows.Scan(&h.ID, &h.Name, &h.Category, &h.ClientID, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account head: %w", err)
		}
		heads = append(heads, h)
	}
	return heads, rows.Err()
}
