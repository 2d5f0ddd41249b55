package entity

// ObservationScope к какому этапу относится наблюдение.
type ObservationScope string

const (
	ScopeIncoming ObservationScope = "incoming" // входной контроль до резов
	ScopeCut      ObservationScope = "cut"      // контроль после конкретного реза
)

// ScopeForCut возвращает область наблюдения по номеру реза:
// 0 означает входной контроль.
func ScopeForCut(cutNumber int) ObservationScope {
	if cutNumber == 0 {
		return ScopeIncoming
	}
	return ScopeCut
}

// Observation наблюдение в трекинговом сервисе, к которому прикрепляются
// снимки. Создаётся один раз на прогон и между прогонами не переиспользуется.
type Observation struct {
	ID        int
	Scope     ObservationScope
	CutNumber int // имеет смысл только при Scope == ScopeCut
}

// SampleContext контекст образца, полученный по идентификатору с этикетки.
type SampleContext struct {
	TestCaseID int // тест-кейс, к которому привязываются наблюдения
	Teeth      int // число зубьев из атрибутов конструкции
	CutNumber  int // текущий рез (0 — входной контроль)
	SampleName string
}
