// Package database defines the insertions and transactions to the database
package database

import (
	"database/sql"
	"fmt"

	"relay-api/internal/shared"
)

// SaveRequest records one finished generation for audit and usage history.
func SaveRequest(db *sql.DB, requestID string, pqi *shared.ProcessedQueryInfo) error {
	_, err := db.Exec(`INSERT INTO request (
			user_id, request_id, endpoint, model_id,
			frames, completed, canceled,
			time_to_first_token, total_time, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pqi.UserID, requestID, pqi.Endpoint, pqi.ModelID,
		pqi.Frames, pqi.Completed, pqi.Canceled,
		pqi.TimeToFirstToken.Milliseconds(), pqi.TotalTime.Milliseconds(),
		pqi.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", err)
	}
	return nil
}
