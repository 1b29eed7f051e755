package store

import (
	"fmt"
)

// schemaVersion is the current stepwise migration level.
const schemaVersion = 3

// migrationLockKey serialises concurrent Migrate calls across processes via
// a session advisory lock.
const migrationLockKey = 0x0531_4C4F

var createTables = []string{
	`CREATE TABLE IF NOT EXISTS database_version (
		v INTEGER NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS updates_processed (
		id BIGSERIAL PRIMARY KEY,
		time BIGINT NOT NULL,
		source SMALLINT NOT NULL,
		applied BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS cif_schedules (
		id BIGSERIAL PRIMARY KEY,
		update_id BIGINT NOT NULL,
		created BIGINT NOT NULL,
		deleted BIGINT NOT NULL,
		train_uid CHAR(6) NOT NULL,
		stp_indicator CHAR(1) NOT NULL,
		schedule_start_date BIGINT NOT NULL,
		schedule_end_date BIGINT NOT NULL,
		days_run CHAR(7) NOT NULL,
		bank_holiday CHAR(1) NOT NULL DEFAULT '',
		train_status CHAR(1) NOT NULL DEFAULT '',
		category CHAR(2) NOT NULL DEFAULT '',
		signalling_id CHAR(4) NOT NULL DEFAULT '',
		headcode CHAR(4) NOT NULL DEFAULT '',
		service_code CHAR(8) NOT NULL DEFAULT '',
		power_type VARCHAR(3) NOT NULL DEFAULT '',
		timing_load VARCHAR(4) NOT NULL DEFAULT '',
		speed VARCHAR(3) NOT NULL DEFAULT '',
		op_characteristics VARCHAR(6) NOT NULL DEFAULT '',
		train_class CHAR(1) NOT NULL DEFAULT '',
		sleepers CHAR(1) NOT NULL DEFAULT '',
		reservations CHAR(1) NOT NULL DEFAULT '',
		connection_indicator CHAR(1) NOT NULL DEFAULT '',
		catering VARCHAR(4) NOT NULL DEFAULT '',
		branding VARCHAR(4) NOT NULL DEFAULT '',
		uic_code VARCHAR(5) NOT NULL DEFAULT '',
		atoc_code VARCHAR(2) NOT NULL DEFAULT '',
		applicable_timetable CHAR(1) NOT NULL DEFAULT '',
		deduced_headcode CHAR(4) NOT NULL DEFAULT '',
		deduced_headcode_status CHAR(1) NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS cif_schedules_uid ON cif_schedules (train_uid, deleted)`,
	`CREATE INDEX IF NOT EXISTS cif_schedules_deleted ON cif_schedules (deleted)`,

	`CREATE TABLE IF NOT EXISTS cif_schedule_locations (
		id BIGSERIAL PRIMARY KEY,
		cif_schedule_id BIGINT NOT NULL,
		record_identity CHAR(2) NOT NULL,
		tiploc_code VARCHAR(7) NOT NULL,
		tiploc_instance CHAR(1) NOT NULL DEFAULT '',
		arrival CHAR(5) NOT NULL DEFAULT '',
		departure CHAR(5) NOT NULL DEFAULT '',
		pass CHAR(5) NOT NULL DEFAULT '',
		public_arrival CHAR(4) NOT NULL DEFAULT '',
		public_departure CHAR(4) NOT NULL DEFAULT '',
		sort_time INTEGER NOT NULL,
		next_day BOOLEAN NOT NULL DEFAULT FALSE,
		platform VARCHAR(3) NOT NULL DEFAULT '',
		line VARCHAR(3) NOT NULL DEFAULT '',
		path VARCHAR(3) NOT NULL DEFAULT '',
		activity VARCHAR(12) NOT NULL DEFAULT '',
		engineering_allowance CHAR(2) NOT NULL DEFAULT '',
		pathing_allowance CHAR(2) NOT NULL DEFAULT '',
		performance_allowance CHAR(2) NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS cif_schedule_locations_sched ON cif_schedule_locations (cif_schedule_id)`,
	`CREATE INDEX IF NOT EXISTS cif_schedule_locations_tiploc ON cif_schedule_locations (tiploc_code)`,

	`CREATE TABLE IF NOT EXISTS cif_changes_en_route (
		id BIGSERIAL PRIMARY KEY,
		cif_schedule_id BIGINT NOT NULL,
		tiploc_code VARCHAR(7) NOT NULL,
		tiploc_instance CHAR(1) NOT NULL DEFAULT '',
		category CHAR(2) NOT NULL DEFAULT '',
		signalling_id CHAR(4) NOT NULL DEFAULT '',
		headcode CHAR(4) NOT NULL DEFAULT '',
		power_type VARCHAR(3) NOT NULL DEFAULT '',
		timing_load VARCHAR(4) NOT NULL DEFAULT '',
		speed VARCHAR(3) NOT NULL DEFAULT '',
		op_characteristics VARCHAR(6) NOT NULL DEFAULT '',
		train_class CHAR(1) NOT NULL DEFAULT '',
		sleepers CHAR(1) NOT NULL DEFAULT '',
		reservations CHAR(1) NOT NULL DEFAULT '',
		connection_indicator CHAR(1) NOT NULL DEFAULT '',
		catering VARCHAR(4) NOT NULL DEFAULT '',
		branding VARCHAR(4) NOT NULL DEFAULT '',
		uic_code VARCHAR(5) NOT NULL DEFAULT '',
		service_code CHAR(8) NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS cif_associations (
		id BIGSERIAL PRIMARY KEY,
		update_id BIGINT NOT NULL,
		created BIGINT NOT NULL,
		deleted BIGINT NOT NULL,
		main_train_uid CHAR(6) NOT NULL,
		assoc_train_uid CHAR(6) NOT NULL,
		assoc_start_date BIGINT NOT NULL,
		assoc_end_date BIGINT NOT NULL,
		assoc_days CHAR(7) NOT NULL,
		category CHAR(2) NOT NULL DEFAULT '',
		date_indicator CHAR(1) NOT NULL DEFAULT '',
		location VARCHAR(7) NOT NULL,
		base_location_suffix CHAR(1) NOT NULL DEFAULT '',
		assoc_location_suffix CHAR(1) NOT NULL DEFAULT '',
		assoc_type CHAR(1) NOT NULL DEFAULT '',
		stp_indicator CHAR(1) NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS cif_tiplocs (
		id BIGSERIAL PRIMARY KEY,
		update_id BIGINT NOT NULL,
		created BIGINT NOT NULL,
		deleted BIGINT NOT NULL,
		tiploc_code VARCHAR(7) NOT NULL,
		capitals CHAR(2) NOT NULL DEFAULT '',
		nalco VARCHAR(6) NOT NULL DEFAULT '',
		nlc_check CHAR(1) NOT NULL DEFAULT '',
		tps_description VARCHAR(26) NOT NULL DEFAULT '',
		stanox VARCHAR(5) NOT NULL DEFAULT '',
		crs_code VARCHAR(3) NOT NULL DEFAULT '',
		description VARCHAR(16) NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS cif_tiplocs_code ON cif_tiplocs (tiploc_code, deleted)`,

	`CREATE TABLE IF NOT EXISTS corpus (
		id BIGSERIAL PRIMARY KEY,
		fn VARCHAR(255) NOT NULL DEFAULT '',
		stanox VARCHAR(5) NOT NULL DEFAULT '',
		uic VARCHAR(7) NOT NULL DEFAULT '',
		"3alpha" VARCHAR(3) NOT NULL DEFAULT '',
		nlcdesc16 VARCHAR(16) NOT NULL DEFAULT '',
		tiploc VARCHAR(7) NOT NULL DEFAULT '',
		nlc VARCHAR(6) NOT NULL DEFAULT '',
		nlcdesc VARCHAR(255) NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS trust_activation (
		created BIGINT NOT NULL,
		trust_id CHAR(10) NOT NULL,
		cif_schedule_id BIGINT NOT NULL,
		deduced BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS trust_activation_id ON trust_activation (trust_id, created)`,

	`CREATE TABLE IF NOT EXISTS trust_activation_extra (
		created BIGINT NOT NULL,
		trust_id CHAR(10) NOT NULL,
		schedule_source CHAR(1) NOT NULL DEFAULT '',
		train_file_address VARCHAR(3) NOT NULL DEFAULT '',
		schedule_end_date VARCHAR(10) NOT NULL DEFAULT '',
		tp_origin_timestamp VARCHAR(10) NOT NULL DEFAULT '',
		creation_timestamp VARCHAR(14) NOT NULL DEFAULT '',
		tp_origin_stanox VARCHAR(5) NOT NULL DEFAULT '',
		origin_dep_timestamp VARCHAR(14) NOT NULL DEFAULT '',
		train_service_code VARCHAR(8) NOT NULL DEFAULT '',
		toc_id VARCHAR(2) NOT NULL DEFAULT '',
		train_call_type VARCHAR(10) NOT NULL DEFAULT '',
		train_call_mode VARCHAR(10) NOT NULL DEFAULT '',
		schedule_type CHAR(1) NOT NULL DEFAULT '',
		sched_origin_stanox VARCHAR(5) NOT NULL DEFAULT '',
		schedule_wtt_id VARCHAR(5) NOT NULL DEFAULT '',
		schedule_start_date VARCHAR(10) NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS trust_movement (
		created BIGINT NOT NULL,
		trust_id CHAR(10) NOT NULL,
		planned_timestamp BIGINT NOT NULL,
		actual_timestamp BIGINT NOT NULL,
		timetable_variation INTEGER NOT NULL,
		loc_stanox VARCHAR(5) NOT NULL DEFAULT '',
		platform VARCHAR(4) NOT NULL DEFAULT '',
		next_report_stanox VARCHAR(5) NOT NULL DEFAULT '',
		next_report_run_time VARCHAR(3) NOT NULL DEFAULT '',
		flags INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trust_movement_id ON trust_movement (trust_id, created)`,

	`CREATE TABLE IF NOT EXISTS trust_cancellation (
		created BIGINT NOT NULL,
		trust_id CHAR(10) NOT NULL,
		reason VARCHAR(2) NOT NULL DEFAULT '',
		loc_stanox VARCHAR(5) NOT NULL DEFAULT '',
		cancel_timestamp BIGINT NOT NULL DEFAULT 0,
		reinstate BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS trust_changeorigin (
		created BIGINT NOT NULL,
		trust_id CHAR(10) NOT NULL,
		reason VARCHAR(2) NOT NULL DEFAULT '',
		loc_stanox VARCHAR(5) NOT NULL DEFAULT '',
		dep_timestamp BIGINT NOT NULL DEFAULT 0,
		orig_timestamp BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS trust_changeid (
		created BIGINT NOT NULL,
		trust_id CHAR(10) NOT NULL,
		new_trust_id CHAR(10) NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS trust_changelocation (
		created BIGINT NOT NULL,
		trust_id CHAR(10) NOT NULL,
		loc_stanox VARCHAR(5) NOT NULL DEFAULT '',
		original_loc_stanox VARCHAR(5) NOT NULL DEFAULT '',
		dep_timestamp BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS status (
		last_trust_processed BIGINT NOT NULL DEFAULT 0,
		last_trust_actual BIGINT NOT NULL DEFAULT 0,
		last_vstp_processed BIGINT NOT NULL DEFAULT 0,
		last_td_processed BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS message_count (
		application VARCHAR(16) NOT NULL,
		time BIGINT NOT NULL,
		count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS message_count_time ON message_count (application, time)`,

	`CREATE TABLE IF NOT EXISTS obfus_lookup (
		created BIGINT NOT NULL,
		true_hc CHAR(4) NOT NULL,
		obfus_hc CHAR(4) NOT NULL
	)`,

	// Receiving tables for the external archiver.
	`CREATE TABLE IF NOT EXISTS trust_activation_arch (LIKE trust_activation INCLUDING ALL)`,
	`CREATE TABLE IF NOT EXISTS trust_movement_arch (LIKE trust_movement INCLUDING ALL)`,
	`CREATE TABLE IF NOT EXISTS trust_cancellation_arch (LIKE trust_cancellation INCLUDING ALL)`,
	`CREATE TABLE IF NOT EXISTS cif_schedules_arch (LIKE cif_schedules INCLUDING ALL)`,
	`CREATE TABLE IF NOT EXISTS cif_schedule_locations_arch (LIKE cif_schedule_locations INCLUDING ALL)`,
}

// Stepwise upgrades from older deployments. Index = from-version.
var migrations = map[int][]string{
	1: {
		`ALTER TABLE cif_schedules ADD COLUMN IF NOT EXISTS deduced_headcode CHAR(4) NOT NULL DEFAULT ''`,
		`ALTER TABLE cif_schedules ADD COLUMN IF NOT EXISTS deduced_headcode_status CHAR(1) NOT NULL DEFAULT ''`,
	},
	2: {
		`ALTER TABLE trust_cancellation ADD COLUMN IF NOT EXISTS reinstate BOOLEAN NOT NULL DEFAULT FALSE`,
	},
}

// Migrate brings the schema up to schemaVersion, creating any missing
// tables. The caller name is recorded in the log so overlapping daemons can
// be told apart. Safe to run from every daemon at startup; a session
// advisory lock serialises concurrent attempts.
func (s *Store) Migrate(caller string) error {
	if _, err := s.Exec(`SELECT pg_advisory_lock($1)`, migrationLockKey); err != nil {
		return fmt.Errorf("store: migration lock: %w", err)
	}
	defer s.Exec(`SELECT pg_advisory_unlock($1)`, migrationLockKey)

	for _, ddl := range createTables {
		if _, err := s.Exec(ddl); err != nil {
			return fmt.Errorf("store: migrate (%s): %w", caller, err)
		}
	}

	var v int
	err := s.QueryRow(`SELECT v FROM database_version`).Scan(&v)
	if err != nil {
		// Fresh database.
		if _, err := s.Exec(`INSERT INTO database_version (v) VALUES ($1)`, schemaVersion); err != nil {
			return fmt.Errorf("store: migrate (%s): seed version: %w", caller, err)
		}
		s.logger.Printf("schema created at version %d by %s", schemaVersion, caller)
		return s.seedStatus()
	}

	for ; v < schemaVersion; v++ {
		for _, ddl := range migrations[v] {
			if _, err := s.Exec(ddl); err != nil {
				return fmt.Errorf("store: migrate (%s) step %d: %w", caller, v, err)
			}
		}
		s.logger.Printf("schema upgraded %d -> %d by %s", v, v+1, caller)
	}
	if _, err := s.Exec(`UPDATE database_version SET v = $1`, schemaVersion); err != nil {
		return fmt.Errorf("store: migrate (%s): record version: %w", caller, err)
	}
	return s.seedStatus()
}

func (s *Store) seedStatus() error {
	var n int
	if err := s.QueryRow(`SELECT COUNT(*) FROM status`).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		_, err := s.Exec(`INSERT INTO status DEFAULT VALUES`)
		return err
	}
	return nil
}
