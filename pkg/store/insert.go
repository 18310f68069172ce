package store

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/bnagy/bm2-core/pkg/crashparse"
)

// InsertTemplate allocates a template_id and writes its raw seed bytes
// to templates/<id>.raw, returning the id for later reference by
// result rows.
func (s *Store) InsertTemplate(raw []byte) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO templates DEFAULT VALUES`)
	if err != nil {
		return 0, fmt.Errorf("store: insert template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: template id: %w", err)
	}
	if err := os.WriteFile(s.templatePath(id), raw, 0o644); err != nil {
		return 0, fmt.Errorf("store: write template file: %w", err)
	}
	return id, nil
}

// InsertSuccess records a non-crash result: allocate result_id,
// referencing the interned stream name and "success" result string.
func (s *Store) InsertSuccess(templateID int64, streamName string) (int64, error) {
	return s.insertResult(templateID, streamName, "success")
}

func (s *Store) insertResult(templateID int64, streamName, resultString string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	streamID, err := idFor(tx, "streams", streamName)
	if err != nil {
		return 0, err
	}
	resultStringID, err := idFor(tx, "result_strings", resultString)
	if err != nil {
		return 0, err
	}

	res, err := tx.Exec(
		`INSERT INTO results (template_id, stream_id, result_string_id) VALUES (?, ?, ?)`,
		templateID, streamID, resultStringID,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert result: %w", err)
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return resultID, tx.Commit()
}

// InsertCrash runs the full transactional crash insert described by the
// Result Store: allocate result_id and crash_id referencing interned
// strings, insert modules (deduplicated by name+checksum), stack
// frames, registers, and disassembly, then write both raw files. Any
// failure — including the file writes — rolls back the whole
// transaction, so a crash never has a database row without its bytes
// on disk or vice versa.
func (s *Store) InsertCrash(templateID int64, streamName string, rawInput []byte, debugText string, parsed crashparse.Result) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("store: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	streamID, err := idFor(tx, "streams", streamName)
	if err != nil {
		return 0, err
	}
	resultStringID, err := idFor(tx, "result_strings", "crash")
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(
		`INSERT INTO results (template_id, stream_id, result_string_id) VALUES (?, ?, ?)`,
		templateID, streamID, resultStringID,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert result: %w", err)
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	hashID, err := idFor(tx, "hash_strings", parsed.Hash)
	if err != nil {
		return 0, err
	}
	descID, err := idFor(tx, "descs", parsed.LongDesc)
	if err != nil {
		return 0, err
	}
	excTypeID, err := idFor(tx, "exception_types", parsed.ExceptionType)
	if err != nil {
		return 0, err
	}
	excSubtypeID, err := idFor(tx, "exception_subtypes", parsed.ExceptionSubtype)
	if err != nil {
		return 0, err
	}
	classID, err := idFor(tx, "classifications", parsed.Classification)
	if err != nil {
		return 0, err
	}

	crashRes, err := tx.Exec(
		`INSERT INTO crashes
		   (result_id, hash_string_id, desc_id, exception_type_id, exception_subtype_id, classification_id)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		resultID, hashID, descID, excTypeID, excSubtypeID, classID,
	)
	if err != nil {
		return 0, fmt.Errorf("store: insert crash: %w", err)
	}
	crashID, err := crashRes.LastInsertId()
	if err != nil {
		return 0, err
	}

	moduleIDByName := make(map[string]int64, len(parsed.LoadedModules))
	for base, mod := range parsed.LoadedModules {
		modID, err := idForModule(tx, mod.Name, mod.Checksum, mod.Size, mod.Timestamp, mod.Version)
		if err != nil {
			return 0, err
		}
		moduleIDByName[mod.Name] = modID
		if _, err := tx.Exec(
			`INSERT INTO loaded_modules (crash_id, module_id, base_address, syms_loaded) VALUES (?, ?, ?, ?)`,
			crashID, modID, base, mod.SymsLoaded,
		); err != nil {
			return 0, fmt.Errorf("store: insert loaded_module: %w", err)
		}
	}

	if len(parsed.StackFrames) > 0 {
		strRes, err := tx.Exec(`INSERT INTO stacktraces (crash_id) VALUES (?)`, crashID)
		if err != nil {
			return 0, fmt.Errorf("store: insert stacktrace: %w", err)
		}
		stID, err := strRes.LastInsertId()
		if err != nil {
			return 0, err
		}
		for _, frame := range parsed.StackFrames {
			pf := crashparse.SplitFrame(frame.Text)
			funcID, err := idFor(tx, "functions", pf.FuncName)
			if err != nil {
				return 0, err
			}
			var modID sql.NullInt64
			if id, ok := moduleIDByName[pf.Module]; ok {
				modID = sql.NullInt64{Int64: id, Valid: true}
			}
			if _, err := tx.Exec(
				`INSERT INTO stackframes (stacktrace_id, frame_index, module_id, function_id, offset)
				 VALUES (?, ?, ?, ?, ?)`,
				stID, frame.Index, modID, funcID, pf.Offset,
			); err != nil {
				return 0, fmt.Errorf("store: insert stackframe: %w", err)
			}
		}
	}

	regs, err := crashparse.RegistersAsInts(parsed.Registers)
	if err != nil {
		return 0, fmt.Errorf("store: parse registers: %w", err)
	}
	for name, value := range regs {
		if _, err := tx.Exec(
			`INSERT INTO register_dumps (crash_id, register_name, value) VALUES (?, ?, ?)`,
			crashID, name, value,
		); err != nil {
			return 0, fmt.Errorf("store: insert register: %w", err)
		}
	}

	for _, line := range parsed.Disassembly {
		if _, err := tx.Exec(
			`INSERT INTO disasm (crash_id, line_index, address, asm) VALUES (?, ?, ?, ?)`,
			crashID, line.Index, line.Address, line.Asm,
		); err != nil {
			return 0, fmt.Errorf("store: insert disasm: %w", err)
		}
	}

	if err := os.WriteFile(s.crashFilePath(crashID), rawInput, 0o644); err != nil {
		return 0, fmt.Errorf("store: write crash raw file: %w", err)
	}
	if err := os.WriteFile(s.crashDataPath(crashID), []byte(debugText), 0o644); err != nil {
		os.Remove(s.crashFilePath(crashID))
		return 0, fmt.Errorf("store: write crash debug file: %w", err)
	}

	if err := tx.Commit(); err != nil {
		os.Remove(s.crashFilePath(crashID))
		os.Remove(s.crashDataPath(crashID))
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	committed = true
	return crashID, nil
}
