package airtable

// Имена таблиц и служебных полей базы
const (
	TableCollections = "Collections"
	TableItems       = "Items"

	FieldID                   = "ID"
	FieldModifiedAt           = "Modified At"
	FieldDelete               = "Delete"
	FieldSyncErrorMessage     = "Synchronization Error Message"
	FieldRowNumber            = "#"
	FieldRecordID             = "Record ID"
	FieldContainerRecordID    = "Container Record ID"
	FieldTypeSingleLineText   = "singleLineText"
	FieldTypeLastModifiedTime = "lastModifiedTime"

	// MaxRecordsPerRequest ограничение API на количество записей в одном запросе
	MaxRecordsPerRequest = 10
)

// Record запись удаленной таблицы
type Record struct {
	ID          string         `json:"id,omitempty"`
	Fields      map[string]any `json:"fields"`
	CreatedTime string         `json:"createdTime,omitempty"`
}

// Field описание поля таблицы
type Field struct {
	ID          string         `json:"id,omitempty"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// Table описание таблицы базы
type Table struct {
	ID             string  `json:"id,omitempty"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	PrimaryFieldID string  `json:"primaryFieldId,omitempty"`
	Fields         []Field `json:"fields"`
}

// BaseSchema схема базы
type BaseSchema struct {
	Tables []Table `json:"tables"`
}

// Sort сортировка выборки
type Sort struct {
	Field     string `json:"field"`
	Direction string `json:"direction"`
}

// ListOptions параметры запроса listRecords
type ListOptions struct {
	PageSize        int      `json:"pageSize,omitempty"`
	Offset          string   `json:"offset,omitempty"`
	Fields          []string `json:"fields,omitempty"`
	Sort            []Sort   `json:"sort,omitempty"`
	FilterByFormula string   `json:"filterByFormula,omitempty"`
}

// ListResult страница записей
type ListResult struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset,omitempty"`
}

// DeletedRecord результат удаления записи
type DeletedRecord struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

type recordsPayload struct {
	Records []Record `json:"records"`
}

type deletedPayload struct {
	Records []DeletedRecord `json:"records"`
}
