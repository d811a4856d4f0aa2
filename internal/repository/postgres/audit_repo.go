package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
)

// AuditRepo пишет решения пачками и считает агрегаты для аналитики.
// Живет на отдельном пуле database/sql: пакетные вставки не должны
// конкурировать за соединения с конфигурационными запросами.
type AuditRepo struct {
	db *sql.DB
}

func NewAuditRepo(connString string) *AuditRepo {
	db, err := sql.Open("pgx", connString)
	if err != nil {
		// В main мы проверим соединение через Ping
		log.Fatal(err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *AuditRepo) WriteBatch(ctx context.Context, decisions []domain.AccessDecision) error {
	if len(decisions) == 0 {
		return nil
	}

	// Количество колонок в таблице access_decisions
	numFields := 12
	placeholderStr := ""
	vals := make([]interface{}, 0, len(decisions)*numFields)

	// Динамически строим запрос для пакетной вставки
	for i, d := range decisions {
		p := i * numFields
		placeholderStr += fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d),",
			p+1, p+2, p+3, p+4, p+5, p+6, p+7, p+8, p+9, p+10, p+11, p+12)

		var customerID sql.NullString
		if d.CustomerID != "" {
			customerID = sql.NullString{String: d.CustomerID, Valid: true}
		}

		vals = append(vals,
			d.ID, d.TraceID, d.TenantID, d.ItemID, customerID,
			string(d.Verdict), d.Required, d.Held, string(d.Reason),
			d.Message, d.DurationMs, d.DecidedAt,
		)
	}

	// Убираем лишнюю запятую в конце
	query := fmt.Sprintf(
		"INSERT INTO access_decisions (id, trace_id, tenant_id, item_id, customer_id, verdict, required_tier, held_tier, reason, message, duration_ms, decided_at) VALUES %s",
		strings.TrimSuffix(placeholderStr, ","),
	)

	_, err := r.db.ExecContext(ctx, query, vals...)
	return err
}

// QueryReasonCounts — агрегат аналитики: сколько решений по каждому коду
// причины у арендатора начиная с момента since.
func (r *AuditRepo) QueryReasonCounts(ctx context.Context, tenantID string, since time.Time) ([]domain.ReasonCount, error) {
	query := `
		SELECT reason, COUNT(*)
		FROM access_decisions
		WHERE tenant_id = $1 AND decided_at >= $2
		GROUP BY reason
		ORDER BY COUNT(*) DESC`

	rows, err := r.db.QueryContext(ctx, query, tenantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ReasonCount
	for rows.Next() {
		var rc domain.ReasonCount
		if err := rows.Scan(&rc.Reason, &rc.Count); err != nil {
			return nil, err
		}
		results = append(results, rc)
	}
	return results, rows.Err()
}
