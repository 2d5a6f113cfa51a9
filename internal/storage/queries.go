package storage

import (
	"context"
	"database/sql"
	"time"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Invoice struct {
	ID            int64
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	ClientName    string
	ClientEmail   string
	ClientAddress string
	Notes         string
	Subtotal      float64
	Tax           float64
	Total         float64
	Variant       string
	Accent        string
	BusinessJSON  string
	CreatedAt     time.Time
	PaidAt        sql.NullTime
	SyncStatus    string
	SyncedAt      sql.NullTime
	LedgerRef     string
}

type InvoiceItem struct {
	InvoiceID   int64
	Position    int64
	ItemID      string
	Description string
	Quantity    float64
	UnitPrice   float64
}

const invoiceColumns = `id, invoice_number, issue_date, due_date, client_name, client_email, client_address,
notes, subtotal, tax, total, variant, accent, business_json, created_at, paid_at, sync_status, synced_at, ledger_ref`

func scanInvoice(row interface{ Scan(...interface{}) error }) (Invoice, error) {
	var i Invoice
	err := row.Scan(
		&i.ID,
		&i.InvoiceNumber,
		&i.IssueDate,
		&i.DueDate,
		&i.ClientName,
		&i.ClientEmail,
		&i.ClientAddress,
		&i.Notes,
		&i.Subtotal,
		&i.Tax,
		&i.Total,
		&i.Variant,
		&i.Accent,
		&i.BusinessJSON,
		&i.CreatedAt,
		&i.PaidAt,
		&i.SyncStatus,
		&i.SyncedAt,
		&i.LedgerRef,
	)
	return i, err
}

const createInvoice = `INSERT INTO invoices (
    invoice_number, issue_date, due_date, client_name, client_email, client_address,
    notes, subtotal, tax, total, variant, accent, business_json, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING id`

type CreateInvoiceParams struct {
	InvoiceNumber string
	IssueDate     string
	DueDate       string
	ClientName    string
	ClientEmail   string
	ClientAddress string
	Notes         string
	Subtotal      float64
	Tax           float64
	Total         float64
	Variant       string
	Accent        string
	BusinessJSON  string
	CreatedAt     time.Time
}

func (q *Queries) CreateInvoice(ctx context.Context, arg CreateInvoiceParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createInvoice,
		arg.InvoiceNumber,
		arg.IssueDate,
		arg.DueDate,
		arg.ClientName,
		arg.ClientEmail,
		arg.ClientAddress,
		arg.Notes,
		arg.Subtotal,
		arg.Tax,
		arg.Total,
		arg.Variant,
		arg.Accent,
		arg.BusinessJSON,
		arg.CreatedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const createInvoiceItem = `INSERT INTO invoice_items (invoice_id, position, item_id, description, quantity, unit_price)
VALUES (?, ?, ?, ?, ?, ?)`

type CreateInvoiceItemParams struct {
	InvoiceID   int64
	Position    int64
	ItemID      string
	Description string
	Quantity    float64
	UnitPrice   float64
}

func (q *Queries) CreateInvoiceItem(ctx context.Context, arg CreateInvoiceItemParams) error {
	_, err := q.db.ExecContext(ctx, createInvoiceItem,
		arg.InvoiceID,
		arg.Position,
		arg.ItemID,
		arg.Description,
		arg.Quantity,
		arg.UnitPrice,
	)
	return err
}

const getInvoice = `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = ?`

func (q *Queries) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(q.db.QueryRowContext(ctx, getInvoice, id))
}

const listRecentInvoices = `SELECT ` + invoiceColumns + ` FROM invoices ORDER BY created_at DESC, id DESC LIMIT ?`

func (q *Queries) ListRecentInvoices(ctx context.Context, limit int64) ([]Invoice, error) {
	rows, err := q.db.QueryContext(ctx, listRecentInvoices, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Invoice
	for rows.Next() {
		i, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listInvoiceItems = `SELECT invoice_id, position, item_id, description, quantity, unit_price
FROM invoice_items WHERE invoice_id = ? ORDER BY position`

func (q *Queries) ListInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := q.db.QueryContext(ctx, listInvoiceItems, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var i InvoiceItem
		if err := rows.Scan(&i.InvoiceID, &i.Position, &i.ItemID, &i.Description, &i.Quantity, &i.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markInvoicePaid = `UPDATE invoices SET paid_at = ? WHERE id = ?`

func (q *Queries) MarkInvoicePaid(ctx context.Context, id int64, paidAt time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, markInvoicePaid, paidAt, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getPendingSyncInvoices = `SELECT id FROM invoices
WHERE sync_status IN ('pending', 'error')
ORDER BY created_at ASC, id ASC
LIMIT ?`

func (q *Queries) GetPendingSyncInvoices(ctx context.Context, limit int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, getPendingSyncInvoices, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

const markInvoiceSynced = `UPDATE invoices SET sync_status = 'synced', synced_at = ?, ledger_ref = ? WHERE id = ?`

func (q *Queries) MarkInvoiceSynced(ctx context.Context, id int64, ledgerRef string, syncedAt time.Time) error {
	_, err := q.db.ExecContext(ctx, markInvoiceSynced, syncedAt, ledgerRef, id)
	return err
}

const markInvoiceSyncError = `UPDATE invoices SET sync_status = 'error' WHERE id = ?`

func (q *Queries) MarkInvoiceSyncError(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, markInvoiceSyncError, id)
	return err
}
