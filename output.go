/*
Copyright (C) 2025 the PreREISE authors.
This file is part of PreREISE.

PreREISE is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

PreREISE is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with PreREISE.  If not, see <http://www.gnu.org/licenses/>.
*/

package prereise

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/gob"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ProfileWriter stores a finished profile table.
type ProfileWriter interface {
	Write(pt *ProfileTable) error
	Close() error
}

// NewProfileWriter builds the writer selected by the output section of
// the configuration.
func NewProfileWriter(c OutputConfig, w io.Writer) (ProfileWriter, error) {
	table := c.Table
	if table == "" {
		table = "profiles"
	}
	switch c.Kind {
	case "csv":
		return &CSVWriter{W: w}, nil
	case "sqlite":
		return NewSQLiteWriter(c.Path, table)
	case "postgres":
		return NewPostgresWriter(c.Path, table)
	}
	return nil, fmt.Errorf("prereise: unknown output kind %q", c.Kind)
}

// CSVWriter writes the profile table as a wide CSV: one timestamp
// column followed by one column per asset, assets in sorted order.
type CSVWriter struct {
	W io.Writer
}

func (cw *CSVWriter) Write(pt *ProfileTable) error {
	w := csv.NewWriter(cw.W)
	header := append([]string{"time"}, pt.Assets...)
	if err := w.Write(header); err != nil {
		return err
	}
	rec := make([]string, len(header))
	for i, t := range pt.Index {
		rec[0] = t.UTC().Format(time.RFC3339)
		for j, id := range pt.Assets {
			rec[j+1] = strconv.FormatFloat(pt.Values[id][i], 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func (cw *CSVWriter) Close() error { return nil }

// SQLiteWriter stores profiles in a local SQLite database, one
// gob-encoded series blob per asset for fast retrieval.
type SQLiteWriter struct {
	db    *sql.DB
	table string
}

// NewSQLiteWriter opens (or creates) the database file and the profile
// table.
func NewSQLiteWriter(fname, table string) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite3", fname)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	_, err = db.Exec("CREATE TABLE IF NOT EXISTS " + table +
		" (asset TEXT PRIMARY KEY, series BLOB)")
	if err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteWriter{db: db, table: table}, nil
}

func (sw *SQLiteWriter) Write(pt *ProfileTable) error {
	tx, err := sw.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT OR REPLACE INTO " + sw.table +
		" (asset, series) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	for _, id := range pt.Assets {
		buf := new(bytes.Buffer)
		e := gob.NewEncoder(buf)
		if err = e.Encode(&AssetProfile{AssetID: id, Times: pt.Index, Values: pt.Values[id]}); err != nil {
			tx.Rollback()
			return err
		}
		if _, err = stmt.Exec(id, buf.Bytes()); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (sw *SQLiteWriter) Close() error { return sw.db.Close() }

// ReadProfile retrieves one asset's stored profile. The returned
// profile may be nil if the asset has no stored series.
func (sw *SQLiteWriter) ReadProfile(assetID string) (*AssetProfile, error) {
	var blob []byte
	err := sw.db.QueryRow("SELECT series FROM "+sw.table+
		" WHERE asset=?", assetID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	d := gob.NewDecoder(bytes.NewReader(blob))
	var p *AssetProfile
	if err = d.Decode(&p); err != nil {
		return nil, err
	}
	return p, nil
}

// PostgresWriter stores profiles in a shared Postgres database in long
// form, one row per asset and timestamp.
type PostgresWriter struct {
	db    *sql.DB
	table string
}

// NewPostgresWriter connects with the given connection string and
// creates the profile table if needed.
func NewPostgresWriter(conninfo, table string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", conninfo)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	_, err = db.Exec("CREATE TABLE IF NOT EXISTS " + table +
		" (asset TEXT, time TIMESTAMPTZ, power_mw DOUBLE PRECISION," +
		" PRIMARY KEY (asset, time))")
	if err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresWriter{db: db, table: table}, nil
}

func (pw *PostgresWriter) Write(pt *ProfileTable) error {
	tx, err := pw.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO " + pw.table +
		" (asset, time, power_mw) VALUES ($1, $2, $3)" +
		" ON CONFLICT (asset, time) DO UPDATE SET power_mw = EXCLUDED.power_mw")
	if err != nil {
		tx.Rollback()
		return err
	}
	for _, id := range pt.Assets {
		for i, t := range pt.Index {
			if _, err = stmt.Exec(id, t.UTC(), pt.Values[id][i]); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}

func (pw *PostgresWriter) Close() error { return pw.db.Close() }

// WriteMappingShapefile writes the resolved asset-to-cell weights as a
// point shapefile for inspection: one point per contribution, placed at
// the contributing cell's center.
func WriteMappingShapefile(fname string, mapping *Mapping, grid *Grid) error {
	fields := make([]goshp.Field, 4)
	fields[0] = goshp.StringField("assetID", 50)
	fields[1] = goshp.NumberField("row", 10)
	fields[2] = goshp.NumberField("col", 10)
	fields[3] = goshp.FloatField("weight", 20, 10)
	outShp, err := shp.NewEncoderFromFields(fname, goshp.POINT, fields...)
	if err != nil {
		return err
	}
	defer outShp.Close()
	for _, e := range mapping.Entries {
		for _, cw := range e.Cells {
			cell := grid.Cells[cw.Cell]
			err = outShp.EncodeFields(cell.Center,
				e.AssetID, cell.Row, cell.Col, cw.Weight)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
