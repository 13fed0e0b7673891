package crm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Userfield описание пользовательского поля смарт-процесса.
type Userfield struct {
	ID         int64
	FieldName  string
	UserTypeID string
	Label      string
}

// UserfieldList все пользовательские поля одного смарт-процесса.
// Из них строится карта полей, когда файла карты нет под рукой.
func (c *Client) UserfieldList(ctx context.Context, entityTypeID int) ([]Userfield, error) {
	const op = "storage.crm.userfields.UserfieldList"

	raw, err := c.Call(ctx, "crm.item.userfield.list", map[string]any{
		"entityTypeId": entityTypeID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var recs []Item
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]Userfield, 0, len(recs))
	for _, rec := range recs {
		out = append(out, userfieldFromItem(rec))
	}
	return out, nil
}

// UserfieldGet одно пользовательское поле по его ID.
func (c *Client) UserfieldGet(ctx context.Context, id int64) (*Userfield, error) {
	const op = "storage.crm.userfields.UserfieldGet"

	raw, err := c.Call(ctx, "crm.item.userfield.get", map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var rec Item
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uf := userfieldFromItem(rec)
	return &uf, nil
}

// UserfieldUpdate частичное изменение настроек поля, прежде всего подписи.
func (c *Client) UserfieldUpdate(ctx context.Context, id int64, fields map[string]any) error {
	const op = "storage.crm.userfields.UserfieldUpdate"

	if _, err := c.Call(ctx, "crm.item.userfield.update", map[string]any{
		"id":     id,
		"fields": fields,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func userfieldFromItem(rec Item) Userfield {
	return Userfield{
		ID:         ToInt64(rec["ID"]),
		FieldName:  ToString(rec["FIELD_NAME"]),
		UserTypeID: ToString(rec["USER_TYPE_ID"]),
		Label:      userfieldLabel(rec),
	}
}

// userfieldLabel русская подпись поля. CRM отдаёт её то строкой, то
// словарём язык -> строка; подпись формы важнее колоночной.
func userfieldLabel(rec Item) string {
	for _, key := range []string{"EDIT_FORM_LABEL", "LIST_COLUMN_LABEL"} {
		switch v := rec[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]any:
			if s := ToString(v["ru"]); s != "" {
				return s
			}
			for _, lv := range v {
				if s := ToString(lv); s != "" {
					return s
				}
			}
		}
	}
	return ""
}
