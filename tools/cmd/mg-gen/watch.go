package main

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
)

// watch calls onChange for every write to one of the files, until ctx is
// done. Parent dirs are watched, as editors often replace files.
func watch(ctx context.Context, files []string, onChange func(file string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	paths := make([]string, len(files))
	for i, f := range files {
		if paths[i], err = filepath.Abs(f); err != nil {
			return err
		}
	}
	dirs := lo.Uniq(lo.Map(paths, func(p string, _ int) string {
		return filepath.Dir(p)
	}))
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			return err
		}
	}

	for {
		select {

		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err

		case e, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			path, err := filepath.Abs(e.Name)
			if err != nil || !slices.Contains(paths, path) {
				continue
			}
			onChange(path)
		}
	}
}
