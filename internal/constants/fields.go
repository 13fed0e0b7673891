package constants

// Логические имена полей смены. Реальные коды (UF_CRM_7_...) подбирает
// карта полей во время работы, хардкод кодов запрещён.
const (
	FieldPlanJSON       = "UF_PLAN_JSON"
	FieldFactJSON       = "UF_FACT_JSON"
	FieldPlanTotal      = "UF_PLAN_TOTAL"
	FieldFactTotal      = "UF_FACT_TOTAL"
	FieldEffRaw         = "UF_EFF_RAW"
	FieldEffFinal       = "UF_EFF_FINAL"
	FieldStatus         = "UF_STATUS"
	FieldShiftType      = "UF_SHIFT_TYPE"
	FieldShiftDate      = "UF_SHIFT_DATE"
	FieldSiteLink       = "UF_SITE_LINK"
	FieldDowntimeReason = "UF_DOWNTIME_REASON"
	FieldPhotos         = "UF_PHOTOS"
	FieldPDFFile        = "UF_PDF_FILE"

	FieldResourceShift    = "UF_RES_SHIFT"
	FieldResourceKind     = "UF_RES_KIND"
	FieldMaterialType     = "UF_MATERIAL_TYPE"
	FieldEquipmentType    = "UF_EQUIPMENT_TYPE"
	FieldResourceUnit     = "UF_RES_UNIT"
	FieldResourceQty      = "UF_RES_QTY"
	FieldResourcePrice    = "UF_RES_PRICE"
	FieldResourceSum      = "UF_RES_SUM"
	FieldResourceHours    = "UF_RES_HOURS"
	FieldResourceRate     = "UF_RES_RATE"
	FieldResourceRateKind = "UF_RES_RATE_KIND"

	FieldTimesheetShift = "UF_TS_SHIFT"
	FieldTimesheetCrew  = "UF_TS_CREW"
	FieldTimesheetHours = "UF_TS_HOURS"
	FieldTimesheetRate  = "UF_TS_RATE"
	FieldTimesheetSum   = "UF_TS_SUM"

	FieldSiteTitle   = "TITLE"
	FieldSiteAddress = "UF_SITE_ADDRESS"
)

// Русские подписи полей в CRM — первая ступень поиска реального кода.
var FieldLabels = map[string]string{
	FieldPlanJSON:       "План (JSON)",
	FieldFactJSON:       "Факт (JSON)",
	FieldPlanTotal:      "Плановый объем",
	FieldFactTotal:      "Фактический объем",
	FieldEffRaw:         "Эффективность (расчет)",
	FieldEffFinal:       "Эффективность (итог)",
	FieldStatus:         "Статус смены",
	FieldShiftType:      "Тип смены",
	FieldShiftDate:      "Дата смены",
	FieldSiteLink:       "Объект",
	FieldDowntimeReason: "Причина простоя",
	FieldPhotos:         "Фото смены",
	FieldPDFFile:        "Файл ЛПА",

	FieldResourceShift:    "Смена",
	FieldResourceKind:     "Тип ресурса",
	FieldMaterialType:     "Вид материала",
	FieldEquipmentType:    "Вид техники",
	FieldResourceUnit:     "Ед. изм.",
	FieldResourceQty:      "Количество",
	FieldResourcePrice:    "Цена за единицу",
	FieldResourceSum:      "Сумма",
	FieldResourceHours:    "Часы работы",
	FieldResourceRate:     "Ставка",
	FieldResourceRateKind: "Вид ставки",

	FieldTimesheetShift: "Смена",
	FieldTimesheetCrew:  "Бригада",
	FieldTimesheetHours: "Отработано часов",
	FieldTimesheetRate:  "Ставка",
	FieldTimesheetSum:   "Сумма",

	FieldSiteAddress: "Адрес объекта",
}

// Русские сущности CRM, под которыми живут карты полей.
const (
	EntityShift     = "Смена"
	EntityResource  = "Ресурс"
	EntityTimesheet = "Табель"
	EntitySite      = "Объект"
)

// Статусы смены: внутренний код -> русская подпись enum-поля.
var ShiftStatusLabels = map[string]string{
	"open":   "Открыта",
	"closed": "Закрыта",
}

// Типы смены: внутренний код -> русская подпись enum-поля.
var ShiftTypeLabels = map[string]string{
	"day":     "Дневная",
	"night":   "Ночная",
	"morning": "Утренняя",
	"evening": "Вечерняя",
}

// Виды ресурсов.
const (
	LabelMaterial  = "Материал"
	LabelEquipment = "Техника"
)

// Статические затравки enum-кэшей. Живое обнаружение имеет приоритет
// и перекрывает совпадающие подписи.
var (
	SeedShiftStatus = map[string]int{
		"Открыта": 2,
		"Закрыта": 1,
	}

	SeedShiftType = map[string]int{
		"Дневная":  5,
		"Ночная":   6,
		"Утренняя": 9,
		"Вечерняя": 10,
	}

	SeedResourceKind = map[string]int{
		"Материал": 7,
		"Техника":  8,
	}
)

// Служебные ключи, которые канонизатор не считает задачами.
var ReservedPlanKeys = map[string]bool{
	"tasks":           true,
	"total_plan":      true,
	"total_fact":      true,
	"object_name":     true,
	"date":            true,
	"section":         true,
	"foreman":         true,
	"shift_type":      true,
	"type":            true,
	"plan_total":      true,
	"fact_total":      true,
	"downtime_reason": true,
	"photos":          true,
	"meta":            true,
}
