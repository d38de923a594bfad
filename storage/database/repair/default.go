package repair

const (
	subjectCategories = "ENUM('Core', 'Languages', 'Sciences', 'Arts', 'Physical Education', 'Technical', 'Other')"
	feeCategories     = "ENUM('Tuition', 'Transport', 'Meals', 'Uniform', 'Books', 'Activities', 'Examination', 'Other')"
	termNames         = "ENUM('Term 1', 'Term 2', 'Term 3')"
	tableOptions      = "ENGINE = InnoDB DEFAULT CHARSET = utf8mb4 COLLATE = utf8mb4_unicode_ci"
)

// Default is the repair plan for databases created by the legacy setup script.
func Default() Plan {
	return Plan{
		Checks: []Check{
			{Kind: TableCheck, Table: "user_sessions", Definition: `CREATE TABLE IF NOT EXISTS user_sessions (
    session_id CHAR(36) PRIMARY KEY,
    user_id    INT       NOT NULL,
    ip_address VARCHAR(45),
    user_agent TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    expires_at TIMESTAMP NOT NULL,
    revoked_at TIMESTAMP NULL,
    FOREIGN KEY (user_id) REFERENCES users (user_id) ON DELETE CASCADE,
    KEY idx_user_sessions_user (user_id)
) ` + tableOptions},
			{Kind: TableCheck, Table: "time_slots", Definition: `CREATE TABLE IF NOT EXISTS time_slots (
    slot_id    INT PRIMARY KEY AUTO_INCREMENT,
    slot_name  VARCHAR(50) NOT NULL,
    start_time TIME        NOT NULL,
    end_time   TIME        NOT NULL,
    is_break   TINYINT(1) DEFAULT 0,
    sort_order INT DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
) ` + tableOptions},
			{Kind: TableCheck, Table: "fee_grade_amounts", Definition: `CREATE TABLE IF NOT EXISTS fee_grade_amounts (
    fee_grade_id  INT PRIMARY KEY AUTO_INCREMENT,
    fee_type_id   INT            NOT NULL,
    grade_id      INT            NOT NULL,
    amount        DECIMAL(10, 2) NOT NULL,
    academic_year VARCHAR(20) DEFAULT '2025-2026',
    is_active     TINYINT(1) DEFAULT 1,
    created_at    TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (fee_type_id) REFERENCES fee_types (fee_type_id) ON DELETE CASCADE,
    FOREIGN KEY (grade_id) REFERENCES grades (grade_id) ON DELETE CASCADE,
    UNIQUE KEY unique_fee_grade_year (fee_type_id, grade_id, academic_year)
) ` + tableOptions},

			{Kind: ColumnCheck, Table: "subjects", Column: "subject_category", Definition: subjectCategories + " DEFAULT 'Core'", After: "subject_code"},
			{Kind: ColumnCheck, Table: "fee_types", Column: "fee_category", Definition: feeCategories + " DEFAULT 'Other'", After: "fee_name"},
			{
				Kind: RenameCheck, Table: "fee_types", Column: "base_amount", OldColumn: "amount",
				Definition:    "DECIMAL(10,2) NOT NULL",
				AddDefinition: "DECIMAL(10,2) NOT NULL DEFAULT 0.00",
				After:         "description",
			},
			{Kind: ColumnCheck, Table: "student_fees", Column: "amount_due", Definition: "DECIMAL(10,2) NOT NULL DEFAULT 0.00", After: "fee_type_id"},
			{Kind: ColumnCheck, Table: "student_fees", Column: "amount_paid", Definition: "DECIMAL(10,2) DEFAULT 0.00", After: "amount_due"},
			{Kind: ColumnCheck, Table: "student_fees", Column: "payment_status", Definition: "ENUM('Pending', 'Paid', 'Partial', 'Overdue') DEFAULT 'Pending'", After: "amount_paid"},
			{Kind: ColumnCheck, Table: "student_fees", Column: "academic_year", Definition: "VARCHAR(20) DEFAULT '2025-2026'", After: "payment_status"},
			{Kind: ColumnCheck, Table: "student_fees", Column: "term", Definition: termNames + " DEFAULT 'Term 1'", After: "academic_year"},
			{Kind: ColumnCheck, Table: "timetable", Column: "academic_year", Definition: "VARCHAR(20) DEFAULT '2025-2026'", After: "room_number"},
			{Kind: ColumnCheck, Table: "timetable", Column: "term", Definition: termNames + " DEFAULT 'Term 1'", After: "academic_year"},
			{Kind: IndexCheck, Table: "student_fees", Index: "unique_student_fee_term", Definition: "UNIQUE KEY (student_id, fee_type_id, academic_year, term)"},
		},
		Backfills: []Backfill{
			{
				Table: "subjects", Column: "subject_category",
				Statements: []string{
					"UPDATE `subjects` SET `subject_category` = 'Languages' WHERE `subject_code` IN ('ENG', 'KIS')",
					"UPDATE `subjects` SET `subject_category` = 'Core' WHERE `subject_code` IN ('MATH', 'SS', 'RE')",
					"UPDATE `subjects` SET `subject_category` = 'Sciences' WHERE `subject_code` = 'SCI'",
					"UPDATE `subjects` SET `subject_category` = 'Physical Education' WHERE `subject_code` = 'PE'",
					"UPDATE `subjects` SET `subject_category` = 'Arts' WHERE `subject_code` IN ('MUS', 'ART')",
					"UPDATE `subjects` SET `subject_category` = 'Technical' WHERE `subject_code` = 'ICT'",
				},
			},
			{
				Table: "fee_types", Column: "fee_category",
				Statements: []string{
					"UPDATE `fee_types` SET `fee_category` = 'Tuition' WHERE `fee_name` LIKE '%Tuition%'",
					"UPDATE `fee_types` SET `fee_category` = 'Transport' WHERE `fee_name` LIKE '%Transport%'",
					"UPDATE `fee_types` SET `fee_category` = 'Meals' WHERE `fee_name` LIKE '%Lunch%' OR `fee_name` LIKE '%Meal%'",
					"UPDATE `fee_types` SET `fee_category` = 'Uniform' WHERE `fee_name` LIKE '%Uniform%'",
					"UPDATE `fee_types` SET `fee_category` = 'Books' WHERE `fee_name` LIKE '%Book%'",
					"UPDATE `fee_types` SET `fee_category` = 'Activities' WHERE `fee_name` LIKE '%Activity%'",
					"UPDATE `fee_types` SET `fee_category` = 'Examination' WHERE `fee_name` LIKE '%Exam%'",
				},
			},
		},
	}
}
