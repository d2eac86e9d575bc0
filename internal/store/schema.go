package store

// One record per student per day is a convention of the service layer;
// the table deliberately carries no unique constraint on (student_id, day).
const schema = `
CREATE TABLE IF NOT EXISTS students (
	id          TEXT PRIMARY KEY,
	roll_number TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS attendance_records (
	id          TEXT PRIMARY KEY,
	student_id  TEXT NOT NULL REFERENCES students(id),
	recorded_at TIMESTAMPTZ NOT NULL,
	status      TEXT NOT NULL CHECK (status IN ('Present', 'Absent')),
	reason      TEXT,
	validation  JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_attendance_records_student_time
	ON attendance_records (student_id, recorded_at DESC, created_at DESC);
`
