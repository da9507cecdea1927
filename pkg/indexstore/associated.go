package indexstore

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"slices"

	"github.com/dd0wney/scann-ondevice/pkg/scann"
)

// AppendAssociatedFiles returns model followed by an uncompressed zip
// archive holding files. Stored entries keep each file contiguous in the
// model so it can be read or mapped in place.
func AppendAssociatedFiles(model []byte, files map[string][]byte) ([]byte, error) {
	if len(files) == 0 {
		return nil, scann.NewError("append_associated_files").InvalidArgument().Msgf("no files to append").Err()
	}
	if existing, err := ListAssociatedFiles(model); err == nil && len(existing) > 0 {
		return nil, scann.NewError("append_associated_files").InvalidArgument().
			Msgf("model already carries %d associated files", len(existing)).Err()
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)

	var buf bytes.Buffer
	buf.Grow(len(model))
	buf.Write(model)

	w := zip.NewWriter(&buf)
	w.SetOffset(int64(len(model)))
	for _, name := range names {
		if err := validName("append_associated_files", name); err != nil {
			return nil, err
		}
		f, err := w.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store})
		if err != nil {
			return nil, scann.NewError("append_associated_files").Key(name).Cause(err).Err()
		}
		if _, err := f.Write(files[name]); err != nil {
			return nil, scann.NewError("append_associated_files").Key(name).Cause(err).Err()
		}
	}
	if err := w.Close(); err != nil {
		return nil, scann.NewError("append_associated_files").Msgf("failed to finish archive").Cause(err).Err()
	}
	return buf.Bytes(), nil
}

func openAssociated(op string, model []byte) (*zip.Reader, error) {
	r, err := zip.NewReader(bytes.NewReader(model), int64(len(model)))
	if errors.Is(err, zip.ErrFormat) {
		return nil, scann.NewError(op).NotFound().Msgf("model has no associated files").Err()
	}
	if err != nil {
		return nil, scann.NewError(op).Msgf("failed to read associated files").Cause(err).Err()
	}
	return r, nil
}

// ListAssociatedFiles returns the names of the files packed into model
func ListAssociatedFiles(model []byte) ([]string, error) {
	r, err := openAssociated("list_associated_files", model)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(r.File))
	for i, f := range r.File {
		names[i] = f.Name
	}
	return names, nil
}

// ExtractAssociatedFile returns the contents of the file called name packed
// into model. A model without associated files, or without that file, is a
// NotFound error.
func ExtractAssociatedFile(model []byte, name string) ([]byte, error) {
	r, err := openAssociated("extract_associated_file", model)
	if err != nil {
		return nil, err
	}
	for _, f := range r.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, scann.NewError("extract_associated_file").Key(name).Cause(err).Err()
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, scann.NewError("extract_associated_file").Key(name).Cause(err).Err()
		}
		return data, nil
	}
	return nil, scann.NewError("extract_associated_file").NotFound().Key(name).Msgf("no such associated file").Err()
}
