package app

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// minDirAge защитный порог: каталоги моложе пяти минут не трогаем,
// это скорее всего активный прогон.
const minDirAge = 5 * time.Minute

// DefaultMaxDirAge возраст, после которого временный каталог прогона
// считается заброшенным.
const DefaultMaxDirAge = 24 * time.Hour

// CleanupStaleRunDirs удаляет заброшенные временные каталоги прогонов,
// чтобы системный temp не зарастал снимками.
//
// Просматривает системный временный каталог и удаляет каталоги с именем,
// начинающимся на prefix, старше maxAge. Файлы и чужие имена не трогаются.
// Ошибки на отдельных записях пропускаются и не прерывают обход.
// Возвращает число фактически удалённых каталогов.
func CleanupStaleRunDirs(prefix string, maxAge time.Duration, onEvent func(string)) int {
	emit := func(msg string) {
		if onEvent != nil {
			onEvent(msg)
		}
	}

	tempRoot := os.TempDir()
	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		emit(fmt.Sprintf("⚠ Temp cleanup failed: %v", err))
		return 0
	}

	var deleted, skippedActive []string
	var failed []string

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if !entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		age := time.Since(info.ModTime())

		if age < minDirAge {
			skippedActive = append(skippedActive, name)
			continue
		}
		if age <= maxAge {
			continue
		}

		if err := os.RemoveAll(filepath.Join(tempRoot, name)); err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		deleted = append(deleted, name)
	}

	if len(deleted) > 0 {
		preview := deleted
		more := ""
		if len(deleted) > 3 {
			preview = deleted[:3]
			more = fmt.Sprintf(" (+%d more)", len(deleted)-3)
		}
		emit("🧹 Deleted old temp dirs: " + strings.Join(preview, ", ") + more)
	}
	if len(skippedActive) > 0 {
		emit(fmt.Sprintf("🔒 Skipped %d recent dirs (active inspections)", len(skippedActive)))
	}
	for i, f := range failed {
		if i >= 2 {
			break
		}
		emit("⚠ Failed to delete " + f)
	}

	return len(deleted)
}
