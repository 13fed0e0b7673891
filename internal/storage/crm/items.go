package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Item слаботипизированная запись CRM как она приходит по проводу.
type Item = map[string]any

type itemResult struct {
	Item Item `json:"item"`
}

type listResult struct {
	Items []Item `json:"items"`
}

// ItemGet одна запись смарт-процесса. select с "*" и "UF_*" возвращает
// и пользовательские поля.
func (c *Client) ItemGet(ctx context.Context, entityTypeID int, id int64, sel []string) (Item, error) {
	const op = "storage.crm.items.ItemGet"

	payload := map[string]any{
		"entityTypeId": entityTypeID,
		"id":           id,
	}
	if len(sel) > 0 {
		payload["select"] = sel
	}

	raw, err := c.Call(ctx, "crm.item.get", payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var res itemResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res.Item, nil
}

// ItemList страница списка. CRM сама ограничивает страницу ~50 записями,
// limit пробрасывается как есть.
func (c *Client) ItemList(ctx context.Context, entityTypeID int, filter map[string]any, sel []string, order map[string]string, limit int) ([]Item, error) {
	const op = "storage.crm.items.ItemList"

	payload := map[string]any{
		"entityTypeId": entityTypeID,
	}
	if len(filter) > 0 {
		payload["filter"] = filter
	}
	if len(sel) > 0 {
		payload["select"] = sel
	}
	if len(order) > 0 {
		payload["order"] = order
	}
	if limit > 0 {
		payload["limit"] = limit
	}

	raw, err := c.Call(ctx, "crm.item.list", payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var res listResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res.Items, nil
}

// ListPages вычитывает до max записей, листая start по 50.
func (c *Client) ListPages(ctx context.Context, entityTypeID int, filter map[string]any, sel []string, order map[string]string, max int) ([]Item, error) {
	const op = "storage.crm.items.ListPages"

	var all []Item
	start := 0
	for len(all) < max {
		payload := map[string]any{
			"entityTypeId": entityTypeID,
			"start":        start,
		}
		if len(filter) > 0 {
			payload["filter"] = filter
		}
		if len(sel) > 0 {
			payload["select"] = sel
		}
		if len(order) > 0 {
			payload["order"] = order
		}

		raw, err := c.Call(ctx, "crm.item.list", payload)
		if err != nil {
			return all, fmt.Errorf("%s: %w", op, err)
		}

		var res listResult
		if err := json.Unmarshal(raw, &res); err != nil {
			return all, fmt.Errorf("%s: %w", op, err)
		}
		if len(res.Items) == 0 {
			break
		}

		all = append(all, res.Items...)
		if len(res.Items) < 50 {
			break
		}
		start += len(res.Items)
	}

	if len(all) > max {
		all = all[:max]
	}
	return all, nil
}

// ItemAdd создаёт запись, возвращает её ID.
func (c *Client) ItemAdd(ctx context.Context, entityTypeID int, fields map[string]any) (int64, error) {
	const op = "storage.crm.items.ItemAdd"

	raw, err := c.Call(ctx, "crm.item.add", map[string]any{
		"entityTypeId": entityTypeID,
		"fields":       fields,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var res itemResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id := ToInt64(res.Item["id"])
	if id == 0 {
		return 0, fmt.Errorf("%s: CRM не вернула id новой записи", op)
	}
	return id, nil
}

// ItemUpdate частичное обновление записи.
func (c *Client) ItemUpdate(ctx context.Context, entityTypeID int, id int64, fields map[string]any) error {
	const op = "storage.crm.items.ItemUpdate"

	if _, err := c.Call(ctx, "crm.item.update", map[string]any{
		"entityTypeId": entityTypeID,
		"id":           id,
		"fields":       fields,
	}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ToFloat приводит любое проводное значение к числу. Запятая считается
// десятичным разделителем. Непригодные значения дают 0.
func ToFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, _ := x.Float64()
		return f
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", "."))
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	case []any:
		if len(x) == 1 {
			return ToFloat(x[0])
		}
	}
	return 0
}

// ToInt64 то же для целых ID.
func ToInt64(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case int:
		return int64(x)
	case int64:
		return x
	case json.Number:
		n, _ := x.Int64()
		return n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case []any:
		if len(x) == 1 {
			return ToInt64(x[0])
		}
	}
	return 0
}

// ToString строковое представление проводного значения.
func ToString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(x, 10)
	case json.Number:
		return x.String()
	case []any:
		if len(x) == 1 {
			return ToString(x[0])
		}
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}
