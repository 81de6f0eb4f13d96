package repository

const (
	createTaskQuery = `INSERT INTO tasks (id, status, upload_status, original_file, outputs)
					VALUES ($1, $2, NULLIF($3, ''), $4, $5)
					RETURNING id, status, COALESCE(upload_status, '') AS upload_status, original_file, outputs, created_at, updated_at`

	getTaskByIDQuery = `SELECT id, status, COALESCE(upload_status, '') AS upload_status, original_file, outputs, created_at, updated_at
					FROM tasks WHERE id = $1`

	// statuses only leave InProgress (or NULL); terminal values stick
	updateTaskQuery = `UPDATE tasks
					SET status = CASE WHEN status = 'InProgress' THEN COALESCE(NULLIF($2, ''), status) ELSE status END,
					    upload_status = CASE WHEN upload_status IS NULL OR upload_status = 'InProgress'
					        THEN COALESCE(NULLIF($3, ''), upload_status) ELSE upload_status END,
					    outputs = COALESCE($4, outputs),
					    updated_at = now()
					WHERE id = $1
					RETURNING id, status, COALESCE(upload_status, '') AS upload_status, original_file, outputs, created_at, updated_at`
)
