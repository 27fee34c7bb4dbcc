// README: Read models for foods and cooks consumed by checkout and dispatch.
package catalog

import "cookroute/internal/types"

type Food struct {
	ID     types.ID
	CookID types.ID
	Name   string
	Price  int64
}

type Cook struct {
	ID          types.ID
	Location    types.Point
	Online      bool
	DeviceToken string
}
