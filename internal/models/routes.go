package models

// Line is the commercial line a route belongs to. Network is the operating
// agency.
type Line struct {
	ID       string   `json:"id" groups:"basic,detailed"`
	Name     string   `json:"name" groups:"basic,detailed"`
	Code     string   `json:"code" groups:"basic,detailed"`
	Mode     string   `json:"mode" groups:"basic,detailed"`
	Network  string   `json:"network" groups:"detailed"`
	RouteIDs []string `json:"routeIds" groups:"detailed"`
}

type Route struct {
	ID     string `json:"id" groups:"basic,detailed"`
	Name   string `json:"name" groups:"basic,detailed"`
	LineID string `json:"lineId" groups:"basic,detailed"`
}
