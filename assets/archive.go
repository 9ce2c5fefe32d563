package assets

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/BaSui01/fitroom/types"
)

// =============================================================================
// 📦 归档提取
// =============================================================================

// Entry 归档中的一个条目
type Entry struct {
	Path string
	Data []byte
}

// EntryIndex 提取结果的内存索引：保留条目顺序，同时支持
// 按完整路径与按 basename 两种查找。
type EntryIndex struct {
	entries []Entry
	byPath  map[string][]byte
	byBase  map[string][]byte
}

// ExtractEntries 将 ZIP 载荷的全部文件条目解压到内存索引。
// 目录与 macOS 元数据条目被跳过。损坏的归档返回 ARCHIVE_CORRUPT。
func ExtractEntries(data []byte) (*EntryIndex, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewError(types.ErrArchiveCorrupt, "failed to open archive").WithCause(err)
	}

	idx := &EntryIndex{
		byPath: make(map[string][]byte),
		byBase: make(map[string][]byte),
	}

	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := normalizeEntryPath(f.Name)
		if name == "" || strings.HasPrefix(name, "__MACOSX/") || path.Base(name) == ".DS_Store" {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, types.NewError(types.ErrArchiveCorrupt, "failed to open archive entry "+f.Name).WithCause(err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, types.NewError(types.ErrArchiveCorrupt, "failed to read archive entry "+f.Name).WithCause(err)
		}

		idx.entries = append(idx.entries, Entry{Path: name, Data: content})
		idx.byPath[name] = content
		idx.byBase[path.Base(name)] = content
	}

	return idx, nil
}

// normalizeEntryPath 统一条目路径：正斜杠、去掉前导 "./" 与绝对前缀，
// 拒绝路径穿越段。
func normalizeEntryPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean(p)
	p = strings.TrimPrefix(p, "/")
	if p == "." || strings.HasPrefix(p, "../") || p == ".." {
		return ""
	}
	return p
}

// Entries 按归档顺序返回全部条目
func (idx *EntryIndex) Entries() []Entry {
	return idx.entries
}

// Len 返回条目数量
func (idx *EntryIndex) Len() int {
	return len(idx.entries)
}

// Get 按完整路径查找条目
func (idx *EntryIndex) Get(p string) ([]byte, bool) {
	data, ok := idx.byPath[normalizeEntryPath(p)]
	return data, ok
}

// GetByBasename 按 basename 查找条目
func (idx *EntryIndex) GetByBasename(name string) ([]byte, bool) {
	data, ok := idx.byBase[path.Base(name)]
	return data, ok
}

// FindByExt 返回第一个匹配扩展名（小写，含点）的条目路径
func (idx *EntryIndex) FindByExt(ext string) (string, bool) {
	for _, e := range idx.entries {
		if strings.ToLower(path.Ext(e.Path)) == ext {
			return e.Path, true
		}
	}
	return "", false
}
