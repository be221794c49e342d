// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

// Package evidencekit implements the orchestration, verification and
// custody layer of a digital forensics acquisition toolkit. It coordinates
// acquisition sessions, manifests and a tamper evident chain of custody
// around a case index.
package evidencekit

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"crawshaw.io/sqlite"
	"github.com/fatih/structs"
	"github.com/google/uuid"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
)

const caseIndexVersion = 1
const caseIndexApplicationID = 1702127983
const discriminator = "type"

// CaseStore is the index of all cases under one evidence root. It maps
// case ids to case metadata and evidence item records. Artifacts,
// manifests and custody ledgers live next to it as plain files.
type CaseStore struct {
	mu     sync.Mutex
	cursor *sqlite.Conn
}

// NewCaseStore opens the case index at the given url, creating it on first
// use. The url ":memory:" yields an ephemeral index for tests.
func NewCaseStore(url string) (*CaseStore, error) {
	create := true
	if url != ":memory:" {
		url = strings.TrimRight(url, "/")

		_, err := os.Stat(url)
		switch {
		case err == nil:
			create = false
		case os.IsNotExist(err):
			if err := os.MkdirAll(path.Dir(url), 0750); err != nil {
				return nil, err
			}
			log.Printf("Creating case index %s", url)
		default:
			return nil, err
		}
	}

	store := &CaseStore{}

	var err error
	store.cursor, err = sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}

	if create {
		if err := setPragma(store.cursor, "application_id", caseIndexApplicationID); err != nil {
			return nil, err
		}
		if err := setPragma(store.cursor, "user_version", caseIndexVersion); err != nil {
			return nil, err
		}
		err = store.exec("CREATE TABLE IF NOT EXISTS `elements` " +
			"(id TEXT PRIMARY KEY, json TEXT, insert_time TEXT)")
		if err != nil {
			return nil, err
		}
	} else {
		applicationID, err := pragma(store.cursor, "application_id")
		if err != nil {
			return nil, err
		}
		if applicationID != caseIndexApplicationID {
			msg := "wrong file format (application_id is %d, requires %d)"
			return nil, fmt.Errorf(msg, applicationID, caseIndexApplicationID)
		}

		version, err := pragma(store.cursor, "user_version")
		if err != nil {
			return nil, err
		}
		if version != caseIndexVersion {
			msg := "wrong file format (user_version is %d, requires %d)"
			return nil, fmt.Errorf(msg, version, caseIndexVersion)
		}
	}

	return store, nil
}

func pragma(conn *sqlite.Conn, name string) (int64, error) {
	stmt, err := conn.Prepare("PRAGMA " + name)
	if err != nil {
		return 0, err
	}
	_, err = stmt.Step()
	if err != nil {
		return 0, err
	}
	i := stmt.GetInt64(name)
	return i, stmt.Finalize()
}

func setPragma(conn *sqlite.Conn, name string, i int64) error {
	stmt, err := conn.Prepare("PRAGMA " + name + " = " + fmt.Sprint(i))
	if err != nil {
		return err
	}
	_, err = stmt.Step()
	if err != nil {
		return err
	}
	return stmt.Finalize()
}

/* ################################
#   API
################################ */

// Insert adds a single record. Records with a known type are validated
// against their schema, records without an id get a generated one.
func (store *CaseStore) Insert(element JSONElement) (string, error) {
	flaws, err := ValidateElement(element)
	if err != nil {
		return "", errors.Wrap(err, "validation failed")
	}
	if len(flaws) > 0 {
		return "", fmt.Errorf("element could not be validated [%s]", strings.Join(flaws, ","))
	}

	elementType := gjson.GetBytes(element, discriminator)
	if !elementType.Exists() {
		return "", errors.New("element requires type")
	}

	id := gjson.GetBytes(element, "id").String()
	if id == "" {
		id = elementType.String() + "--" + uuid.New().String()

		fields := Element{}
		if err := json.Unmarshal(element, &fields); err != nil {
			return "", err
		}
		fields["id"] = id
		element, err = json.Marshal(fields)
		if err != nil {
			return "", err
		}
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	stmt, err := store.cursor.Prepare("INSERT INTO `elements` (id, json, insert_time) VALUES ($id, $json, $time)")
	if err != nil {
		return "", errors.Wrap(err, "could not prepare insert statement")
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(element))
	stmt.SetText("$time", time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	if _, err := stmt.Step(); err != nil {
		return "", errors.Wrapf(err, "could not insert element %s", id)
	}
	return id, stmt.Finalize()
}

// InsertStruct converts a Go struct to a snake_case keyed record and
// inserts it.
func (store *CaseStore) InsertStruct(element interface{}) (string, error) {
	m := structs.Map(element)
	m = lower(m).(map[string]interface{})
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return store.Insert(b)
}

// Get retrieves a single record.
func (store *CaseStore) Get(id string) (JSONElement, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` WHERE id = $id")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$id", id)

	elements, err := store.rowsToElements(stmt)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, errors.New("element does not exist")
	}
	return elements[0], nil
}

// Update merges a partial record into an existing one. Only case and
// evidence records are ever updated, manifests and custody entries are
// immutable.
func (store *CaseStore) Update(id string, partial Element) error {
	element, err := store.Get(id)
	if err != nil {
		return err
	}

	// mergo requires identical argument types, so both sides are plain
	// maps here, not the Element alias.
	fields := map[string]interface{}{}
	if err := json.Unmarshal(element, &fields); err != nil {
		return err
	}
	if err := mergo.Merge(&fields, map[string]interface{}(partial), mergo.WithOverride); err != nil {
		return err
	}

	updated, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	flaws, err := ValidateElement(updated)
	if err != nil {
		return errors.Wrap(err, "validation failed")
	}
	if len(flaws) > 0 {
		return fmt.Errorf("element could not be validated [%s]", strings.Join(flaws, ","))
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	stmt, err := store.cursor.Prepare("UPDATE `elements` SET json = $json WHERE id = $id")
	if err != nil {
		return err
	}
	stmt.SetText("$id", id)
	stmt.SetText("$json", string(updated))
	if _, err := stmt.Step(); err != nil {
		return errors.Wrapf(err, "could not update element %s", id)
	}
	return stmt.Finalize()
}

// Select retrieves all records of one type.
func (store *CaseStore) Select(elementType string) ([]JSONElement, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	stmt, err := store.cursor.Prepare(
		"SELECT json FROM `elements` WHERE json_extract(json, '$." + discriminator + "') = $type ORDER BY id")
	if err != nil {
		return nil, err
	}
	stmt.SetText("$type", elementType)
	return store.rowsToElements(stmt)
}

// All returns every record.
func (store *CaseStore) All() ([]JSONElement, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	stmt, err := store.cursor.Prepare("SELECT json FROM `elements` ORDER BY id")
	if err != nil {
		return nil, err
	}
	return store.rowsToElements(stmt)
}

// Close closes the index database.
func (store *CaseStore) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()
	return store.cursor.Close()
}

/* ################################
#   Intern
################################ */

func (store *CaseStore) rowsToElements(stmt *sqlite.Stmt) (elements []JSONElement, err error) {
	elements = []JSONElement{}
	for {
		if hasRow, err := stmt.Step(); err != nil {
			return nil, err
		} else if !hasRow {
			break
		}
		elements = append(elements, JSONElement(stmt.GetText("json")))
	}
	return elements, stmt.Finalize()
}

func (store *CaseStore) exec(query string) error {
	stmt, err := store.cursor.Prepare(query)
	if err != nil {
		return err
	}
	_, err = stmt.Step()
	if err != nil {
		return err
	}
	return stmt.Finalize()
}
