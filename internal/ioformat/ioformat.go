// Package ioformat implements the little-endian binary file formats the
// engine interoperates with (spec.md §6): the `.selected` input file, the
// per-pass id sidecar, the `.assigned`/`.unassigned` outputs, and the
// `.leftover.clusters` CSV. None of these formats are modeled by any
// library in the retrieval pack — they are bespoke, fixed-header wire
// formats the way megaclust's own loader/writer functions are, so this
// package reads and writes them directly with encoding/binary the same
// way the teacher's own internal/parser/hprof binary reader does.
package ioformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	dclusterrors "github.com/sib-swiss/dclust/pkg/errors"
	"github.com/sib-swiss/dclust/pkg/model"
)

const (
	headerMagicSize  = 32
	columnHeaderSize = 2048
	nameStringSize   = 32
)

var (
	selectedMagic   = padMagic("dclust input file v1.0        \n")
	assignedMagic   = padMagic("dclust assigned file v1.0     \n")
	unassignedMagic = padMagic("dclust unassigned file v1.0   \n")
)

func padMagic(s string) [headerMagicSize]byte {
	var b [headerMagicSize]byte
	copy(b[:], s)
	return b
}

func fileErr(path string, err error) error {
	return dclusterrors.Wrap(dclusterrors.CodeRuntime, fmt.Sprintf("I/O error on %s", path), err)
}

func formatErr(code string, msg string, err error) error {
	return dclusterrors.Wrap(code, msg, err)
}

// SelectedHeader describes a loaded `.selected` input file's metadata
// (spec.md §6).
type SelectedHeader struct {
	RowCount     int
	ColCount     int
	LoadEveryN   int
	ColumnHeader string
	SortKey      int
	UniqueNames  []string
}

// ReadSelected parses a `.selected` input file into a header and the
// point array it describes.
func ReadSelected(r io.Reader) (SelectedHeader, []model.Point, error) {
	br := bufio.NewReader(r)
	var magic [headerMagicSize]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return SelectedHeader{}, nil, formatErr(dclusterrors.CodeFormat, "reading input file magic", err)
	}
	if magic != selectedMagic {
		return SelectedHeader{}, nil, dclusterrors.ErrBadMagic
	}

	var endian, rowCount, colCount, loadEveryN int32
	for _, dst := range []*int32{&endian, &rowCount, &colCount, &loadEveryN} {
		if err := binary.Read(br, binary.LittleEndian, dst); err != nil {
			return SelectedHeader{}, nil, formatErr(dclusterrors.CodeFormat, "reading input file header", err)
		}
	}
	if endian != 1 {
		return SelectedHeader{}, nil, dclusterrors.ErrEndianMismatch
	}
	if !model.ValidColumnCount(int(colCount)) {
		return SelectedHeader{}, nil, dclusterrors.ErrColumnCountOOB
	}

	colHeaderBuf := make([]byte, columnHeaderSize)
	if _, err := io.ReadFull(br, colHeaderBuf); err != nil {
		return SelectedHeader{}, nil, formatErr(dclusterrors.CodeFormat, "reading column header text", err)
	}

	var sortKey, uniqueNameCount uint16
	if err := binary.Read(br, binary.LittleEndian, &sortKey); err != nil {
		return SelectedHeader{}, nil, formatErr(dclusterrors.CodeFormat, "reading sort key", err)
	}
	if err := binary.Read(br, binary.LittleEndian, &uniqueNameCount); err != nil {
		return SelectedHeader{}, nil, formatErr(dclusterrors.CodeFormat, "reading unique name count", err)
	}

	names := make([]string, uniqueNameCount)
	nameBuf := make([]byte, nameStringSize)
	for i := range names {
		if _, err := io.ReadFull(br, nameBuf); err != nil {
			return SelectedHeader{}, nil, formatErr(dclusterrors.CodeFormat, "reading name strings", err)
		}
		names[i] = trimNulls(nameBuf)
	}

	if int(rowCount) > model.MaxEvents {
		return SelectedHeader{}, nil, dclusterrors.ErrTooManyEvents
	}

	points := make([]model.Point, rowCount)
	for i := range points {
		var nameIndex uint32
		if err := binary.Read(br, binary.LittleEndian, &nameIndex); err != nil {
			return SelectedHeader{}, nil, formatErr(dclusterrors.CodeFormat, "reading point record", err)
		}
		data := make([]uint16, colCount)
		if err := binary.Read(br, binary.LittleEndian, data); err != nil {
			return SelectedHeader{}, nil, formatErr(dclusterrors.CodeFormat, "reading point record", err)
		}
		points[i] = model.Point{NameIndex: model.NameIndex(nameIndex), Data: data}
	}

	header := SelectedHeader{
		RowCount:     int(rowCount),
		ColCount:     int(colCount),
		LoadEveryN:   int(loadEveryN),
		ColumnHeader: trimNulls(colHeaderBuf),
		SortKey:      int(sortKey),
		UniqueNames:  names,
	}
	return header, points, nil
}

func trimNulls(b []byte) string {
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

// WriteSidecar writes a pass's raw cluster-id vector (spec.md §6's
// per-pass id sidecar: "raw row_count × uint32 cluster ids").
func WriteSidecar(path string, ids []model.ClusterID) error {
	f, err := os.Create(path)
	if err != nil {
		return fileErr(path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, id := range ids {
		if err := binary.Write(w, binary.LittleEndian, uint32(id)); err != nil {
			return fileErr(path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fileErr(path, err)
	}
	return nil
}

// ReadSidecar reads back a previously written per-pass id vector.
func ReadSidecar(path string, rowCount int) ([]model.ClusterID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dclusterrors.Wrap(dclusterrors.CodeRuntime, fmt.Sprintf("sidecar %s not found", path), err)
	}
	defer f.Close()
	raw := make([]uint32, rowCount)
	if err := binary.Read(bufio.NewReader(f), binary.LittleEndian, raw); err != nil {
		return nil, formatErr(dclusterrors.CodeFormat, fmt.Sprintf("sidecar %s truncated", path), err)
	}
	ids := make([]model.ClusterID, rowCount)
	for i, v := range raw {
		ids[i] = model.ClusterID(v)
	}
	return ids, nil
}

// RenameSidecar moves the in-progress sidecar to its final, cutoff-named
// path (spec.md §4.7: "the final pass additionally renames the current
// 'in-progress' sidecar to its true cutoff name").
func RenameSidecar(inProgressPath, finalPath string) error {
	if err := os.Rename(inProgressPath, finalPath); err != nil {
		return fileErr(finalPath, err)
	}
	return nil
}

// WriteAssigned writes the `.assigned` output: points with a non-zero
// final cluster id, quantized data widened to float32 (spec.md §6).
func WriteAssigned(path string, points []model.Point, ids []model.ClusterID, colCount, maxClusterID int, headerText string) error {
	f, err := os.Create(path)
	if err != nil {
		return fileErr(path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if _, err := w.Write(assignedMagic[:]); err != nil {
		return fileErr(path, err)
	}
	var assignedCount int32
	for _, id := range ids {
		if id.IsAssigned() {
			assignedCount++
		}
	}
	for _, v := range []int32{1, assignedCount, int32(colCount), int32(maxClusterID)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fileErr(path, err)
		}
	}
	if err := writeFixedHeader(w, headerText); err != nil {
		return fileErr(path, err)
	}

	for i, p := range points {
		if !ids[i].IsAssigned() {
			continue
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(p.NameIndex)); err != nil {
			return fileErr(path, err)
		}
		if err := writeFloatRow(w, p.Data); err != nil {
			return fileErr(path, err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(ids[i])); err != nil {
			return fileErr(path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fileErr(path, err)
	}
	return nil
}

// WriteUnassigned writes the `.unassigned` output: points whose final
// cluster id is still zero (spec.md §6).
func WriteUnassigned(path string, points []model.Point, ids []model.ClusterID, colCount int, headerText string) error {
	f, err := os.Create(path)
	if err != nil {
		return fileErr(path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)

	if _, err := w.Write(unassignedMagic[:]); err != nil {
		return fileErr(path, err)
	}
	var unassignedCount int32
	for _, id := range ids {
		if !id.IsAssigned() {
			unassignedCount++
		}
	}
	for _, v := range []int32{1, unassignedCount, int32(colCount)} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fileErr(path, err)
		}
	}
	if err := writeFixedHeader(w, headerText); err != nil {
		return fileErr(path, err)
	}
	for i, p := range points {
		if ids[i].IsAssigned() {
			continue
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(p.NameIndex)); err != nil {
			return fileErr(path, err)
		}
		if err := writeFloatRow(w, p.Data); err != nil {
			return fileErr(path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fileErr(path, err)
	}
	return nil
}

func writeFloatRow(w io.Writer, data []uint16) error {
	floats := make([]float32, len(data))
	for i, v := range data {
		floats[i] = float32(v)
	}
	return binary.Write(w, binary.LittleEndian, floats)
}

func writeFixedHeader(w io.Writer, text string) error {
	buf := make([]byte, columnHeaderSize)
	copy(buf, text)
	_, err := w.Write(buf)
	return err
}

// LeftoverRecord is one row of the `.leftover.clusters` CSV: a leftover
// point's name index and the cluster it was reassigned to, or 0 for
// ambiguous/out-of-range (spec.md §6).
type LeftoverRecord struct {
	NameIndex model.NameIndex
	ClusterID model.ClusterID
}

// WriteLeftoverClusters writes the header-less CSV of leftover
// reassignment outcomes.
func WriteLeftoverClusters(path string, records []LeftoverRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fileErr(path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, r := range records {
		if _, err := fmt.Fprintf(w, "%d,%d\n", r.NameIndex, r.ClusterID); err != nil {
			return fileErr(path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fileErr(path, err)
	}
	return nil
}
