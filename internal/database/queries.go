package database

// Statements used by SQLiteDatabase. Each mutation is a single statement so
// that concurrent callers never lose updates.
const (
	nextSequenceNumber = `UPDATE bottle_sequence SET value = value + 1 WHERE id = 1 RETURNING value`

	insertBottle = `INSERT INTO bottles (id, sequence_number, message, nickname, country, origin_address, status, report_count, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`

	bottleColumns = `b.id, b.sequence_number, b.message, b.nickname, b.country, b.origin_address, b.status, b.report_count, b.created_at,
COALESCE((SELECT json_group_object(r.emoji, r.count) FROM bottle_reactions r WHERE r.bottle_id = b.id), '{}')`

	getBottle = `SELECT ` + bottleColumns + ` FROM bottles b WHERE b.id = ?`

	sampleActiveBottles = `SELECT ` + bottleColumns + ` FROM bottles b
WHERE b.status = 'active' AND b.id != ?
ORDER BY RANDOM()
LIMIT ?`

	incrementReportCount = `UPDATE bottles SET report_count = report_count + 1 WHERE id = ? RETURNING report_count`

	setBottleStatus = `UPDATE bottles SET status = ? WHERE id = ?`

	bottleExists = `SELECT 1 FROM bottles WHERE id = ?`

	addReaction = `INSERT INTO bottle_reactions (bottle_id, emoji, count) VALUES (?, ?, 1)
ON CONFLICT (bottle_id, emoji) DO UPDATE SET count = count + 1`

	removeReaction = `UPDATE bottle_reactions SET count = count - 1 WHERE bottle_id = ? AND emoji = ? AND count > 1`

	pruneReaction = `DELETE FROM bottle_reactions WHERE bottle_id = ? AND emoji = ? AND count <= 1`

	listReactions = `SELECT emoji, count FROM bottle_reactions WHERE bottle_id = ?`

	insertFalsePositiveReport = `INSERT INTO false_positive_reports (id, message, nickname, country, origin_address, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

	bottleStats = `SELECT
COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
COALESCE(SUM(CASE WHEN status = 'reported' THEN 1 ELSE 0 END), 0),
(SELECT COUNT(*) FROM false_positive_reports),
(SELECT value FROM bottle_sequence WHERE id = 1)
FROM bottles`
)
