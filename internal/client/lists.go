package client

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/dukerupert/mila/internal/model"
	"github.com/dukerupert/mila/internal/shopping"
)

type listRequest struct {
	Name     *string `json:"name,omitempty"`
	StoreID  *string `json:"store_id,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

type itemRequest struct {
	Name     *string  `json:"name,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
	Unit     *string  `json:"unit,omitempty"`
	Category *string  `json:"category,omitempty"`
	Notes    *string  `json:"notes,omitempty"`
	Price    *float64 `json:"price,omitempty"`
}

// Profile is the caller's profile plus whether premium features are on.
type Profile struct {
	model.UserProfile
	IsPremium bool `json:"is_premium"`
}

func (c *Client) GetUserLists(ctx context.Context) ([]model.ShoppingList, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var lists []model.ShoppingList
	if err := c.do(ctx, "get user lists", "GET", "/rest/v1/lists", nil, token, nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

func (c *Client) GetList(ctx context.Context, listID string) (*model.ShoppingList, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var l model.ShoppingList
	if err := c.do(ctx, "get list", "GET", "/rest/v1/lists/"+url.PathEscape(listID), nil, token, nil, &l); err != nil {
		return nil, err
	}
	return &l, nil
}

// CreateList trims the name and rejects an empty one before calling out.
func (c *Client) CreateList(ctx context.Context, in shopping.CreateListInput) (*model.ShoppingList, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &shopping.ValidationError{Field: "name", Message: "name is required"}
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var l model.ShoppingList
	err = c.do(ctx, "create list", "POST", "/rest/v1/lists", nil, token,
		listRequest{Name: &name, StoreID: in.StoreID}, &l)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) UpdateList(ctx context.Context, listID string, in shopping.UpdateListInput) (*model.ShoppingList, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var l model.ShoppingList
	err = c.do(ctx, "update list", "PATCH", "/rest/v1/lists/"+url.PathEscape(listID), nil, token,
		listRequest{Name: in.Name, StoreID: in.StoreID, IsActive: in.IsActive}, &l)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (c *Client) DeleteList(ctx context.Context, listID string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, "delete list", "DELETE", "/rest/v1/lists/"+url.PathEscape(listID), nil, token, nil, nil)
}

// AddItem trims the name and rejects an empty one before calling out.
func (c *Client) AddItem(ctx context.Context, listID string, in shopping.CreateItemInput) (*model.ShoppingItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, &shopping.ValidationError{Field: "name", Message: "name is required"}
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req := itemRequest{Name: &name, Quantity: in.Quantity}
	if in.Unit != "" {
		req.Unit = &in.Unit
	}
	if in.Category != "" {
		req.Category = &in.Category
	}
	if in.Notes != "" {
		req.Notes = &in.Notes
	}
	var item model.ShoppingItem
	err = c.do(ctx, "add item", "POST", "/rest/v1/lists/"+url.PathEscape(listID)+"/items", nil, token, req, &item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateItem(ctx context.Context, itemID string, in shopping.UpdateItemInput) (*model.ShoppingItem, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	req := itemRequest{
		Name:     in.Name,
		Quantity: in.Quantity,
		Unit:     in.Unit,
		Category: in.Category,
		Notes:    in.Notes,
		Price:    in.Price,
	}
	var item model.ShoppingItem
	if err := c.do(ctx, "update item", "PATCH", "/rest/v1/items/"+url.PathEscape(itemID), nil, token, req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ToggleItem(ctx context.Context, itemID string) (*model.ShoppingItem, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var item model.ShoppingItem
	if err := c.do(ctx, "toggle item", "POST", "/rest/v1/items/"+url.PathEscape(itemID)+"/toggle", nil, token, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteItem(ctx context.Context, itemID string) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	return c.do(ctx, "delete item", "DELETE", "/rest/v1/items/"+url.PathEscape(itemID), nil, token, nil, nil)
}

// ClearChecked removes the checked items of a list and returns how many went.
func (c *Client) ClearChecked(ctx context.Context, listID string) (int, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	err = c.do(ctx, "clear checked", "POST", "/rest/v1/lists/"+url.PathEscape(listID)+"/clear-checked", nil, token, nil, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// GetStores lists the reference stores. It works without a session.
func (c *Client) GetStores(ctx context.Context) ([]model.Store, error) {
	var stores []model.Store
	if err := c.do(ctx, "get stores", "GET", "/rest/v1/stores", nil, "", nil, &stores); err != nil {
		return nil, err
	}
	return stores, nil
}

func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	var p Profile
	if err := c.do(ctx, "get profile", "GET", "/rest/v1/profile", nil, token, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Suggestions looks up products by name prefix. Premium only: a free account
// gets a TransportError with status 403.
func (c *Client) Suggestions(ctx context.Context, prefix string, limit int) ([]model.ProductSuggestion, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	q := url.Values{"q": {prefix}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []model.ProductSuggestion
	if err := c.do(ctx, "get suggestions", "GET", "/rest/v1/suggestions", q, token, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecoverPassword asks the server to mail a reset code. It succeeds whether
// or not the address has an account.
func (c *Client) RecoverPassword(ctx context.Context, email string) error {
	return c.do(ctx, "recover password", "POST", "/auth/v1/recover", nil, "",
		map[string]string{"email": email}, nil)
}

// ResetPassword sets a new password with a mailed code. All sessions of the
// account, this one included, end.
func (c *Client) ResetPassword(ctx context.Context, email, code, password string) error {
	err := c.do(ctx, "reset password", "POST", "/auth/v1/verify", nil, "",
		map[string]string{"email": email, "code": code, "password": password}, nil)
	if err != nil {
		return err
	}
	if c.CurrentSession() != nil {
		return c.setSession(nil, SignedOut)
	}
	return nil
}
