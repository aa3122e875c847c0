package acled

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MSF-Collaborate/msf-toolbox/apierror"
	"github.com/MSF-Collaborate/msf-toolbox/internal/api"
)

// dataEnvelope is the common ACLED response wrapper.
type dataEnvelope struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Data    json.RawMessage `json:"data"`
}

// EventFilter narrows ListEvents results. Zero values are omitted.
type EventFilter struct {
	DataID         int
	ISO            int
	EventIDCnty    string
	EventDate      string // YYYY-MM-DD, or "YYYY-MM-DD|YYYY-MM-DD" with EventDateWhere "BETWEEN"
	EventDateWhere string
	Year           int
	TimePrecision  int
	EventType      string
	SubEventType   string
	Actor1         string
	AssocActor1    string
	Inter1         int
	Actor2         string
	AssocActor2    string
	Inter2         int
	Interaction    int
	Region         int
	Country        string
	Limit          int
}

func (f *EventFilter) query() url.Values {
	v := url.Values{}
	if f == nil {
		return v
	}
	setInt(v, "data_id", f.DataID)
	setInt(v, "iso", f.ISO)
	setString(v, "event_id_cnty", f.EventIDCnty)
	setString(v, "event_date", f.EventDate)
	setString(v, "event_date_where", f.EventDateWhere)
	setInt(v, "year", f.Year)
	setInt(v, "time_precision", f.TimePrecision)
	setString(v, "event_type", f.EventType)
	setString(v, "sub_event_type", f.SubEventType)
	setString(v, "actor1", f.Actor1)
	setString(v, "assoc_actor_1", f.AssocActor1)
	setInt(v, "inter1", f.Inter1)
	setString(v, "actor2", f.Actor2)
	setString(v, "assoc_actor_2", f.AssocActor2)
	setInt(v, "inter2", f.Inter2)
	setInt(v, "interaction", f.Interaction)
	setInt(v, "region", f.Region)
	setString(v, "country", f.Country)
	return v
}

// ActorFilter narrows ListActors results.
type ActorFilter struct {
	ActorName      string
	FirstEventDate string
	LastEventDate  string
	EventCount     int
	Limit          int
}

func (f *ActorFilter) query() url.Values {
	v := url.Values{}
	if f == nil {
		return v
	}
	setString(v, "actor_name", f.ActorName)
	setString(v, "first_event_date", f.FirstEventDate)
	setString(v, "last_event_date", f.LastEventDate)
	setInt(v, "event_count", f.EventCount)
	return v
}

// RegionFilter narrows ListRegions results.
type RegionFilter struct {
	Region         int
	RegionName     string
	FirstEventDate string
	LastEventDate  string
	Limit          int
}

func (f *RegionFilter) query() url.Values {
	v := url.Values{}
	if f == nil {
		return v
	}
	setInt(v, "region", f.Region)
	setString(v, "region_name", f.RegionName)
	setString(v, "first_event_date", f.FirstEventDate)
	setString(v, "last_event_date", f.LastEventDate)
	return v
}

// CountryFilter narrows ListCountries results.
type CountryFilter struct {
	Country        string
	ISO            int
	FirstEventDate string
	LastEventDate  string
	Limit          int
}

func (f *CountryFilter) query() url.Values {
	v := url.Values{}
	if f == nil {
		return v
	}
	setString(v, "country", f.Country)
	setInt(v, "iso", f.ISO)
	setString(v, "first_event_date", f.FirstEventDate)
	setString(v, "last_event_date", f.LastEventDate)
	return v
}

// Event is a single ACLED event record. ACLED serializes most values as
// strings regardless of their logical type.
type Event struct {
	DataID        string `json:"data_id"`
	ISO           string `json:"iso"`
	EventIDCnty   string `json:"event_id_cnty"`
	EventDate     string `json:"event_date"`
	Year          string `json:"year"`
	TimePrecision string `json:"time_precision"`
	EventType     string `json:"event_type"`
	SubEventType  string `json:"sub_event_type"`
	Actor1        string `json:"actor1"`
	AssocActor1   string `json:"assoc_actor_1"`
	Inter1        string `json:"inter1"`
	Actor2        string `json:"actor2"`
	AssocActor2   string `json:"assoc_actor_2"`
	Inter2        string `json:"inter2"`
	Interaction   string `json:"interaction"`
	Region        string `json:"region"`
	Country       string `json:"country"`
	Admin1        string `json:"admin1"`
	Admin2        string `json:"admin2"`
	Admin3        string `json:"admin3"`
	Location      string `json:"location"`
	Latitude      string `json:"latitude"`
	Longitude     string `json:"longitude"`
	Source        string `json:"source"`
	Notes         string `json:"notes"`
	Fatalities    string `json:"fatalities"`
}

// Actor is an ACLED actor record.
type Actor struct {
	ActorName      string `json:"actor_name"`
	FirstEventDate string `json:"first_event_date"`
	LastEventDate  string `json:"last_event_date"`
	EventCount     string `json:"event_count"`
}

// Region is an ACLED region record.
type Region struct {
	Region         string `json:"region"`
	RegionName     string `json:"region_name"`
	FirstEventDate string `json:"first_event_date"`
	LastEventDate  string `json:"last_event_date"`
	EventCount     string `json:"event_count"`
}

// Country is an ACLED country record.
type Country struct {
	Country        string `json:"country"`
	ISO            string `json:"iso"`
	ISO3           string `json:"iso3"`
	FirstEventDate string `json:"first_event_date"`
	LastEventDate  string `json:"last_event_date"`
	EventCount     string `json:"event_count"`
}

// ListEvents lists events matching the filter from /acled/read.
func (c *Client) ListEvents(ctx context.Context, filter *EventFilter) ([]Event, error) {
	var limit int
	if filter != nil {
		limit = filter.Limit
	}
	var events []Event
	if err := c.list(ctx, "/acled/read", filter.query(), limit, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// ListActors lists actors matching the filter from /actor/read.
func (c *Client) ListActors(ctx context.Context, filter *ActorFilter) ([]Actor, error) {
	var limit int
	if filter != nil {
		limit = filter.Limit
	}
	var actors []Actor
	if err := c.list(ctx, "/actor/read", filter.query(), limit, &actors); err != nil {
		return nil, err
	}
	return actors, nil
}

// ListRegions lists regions matching the filter from /region/read.
func (c *Client) ListRegions(ctx context.Context, filter *RegionFilter) ([]Region, error) {
	var limit int
	if filter != nil {
		limit = filter.Limit
	}
	var regions []Region
	if err := c.list(ctx, "/region/read", filter.query(), limit, &regions); err != nil {
		return nil, err
	}
	return regions, nil
}

// ListCountries lists countries matching the filter from /country/read.
func (c *Client) ListCountries(ctx context.Context, filter *CountryFilter) ([]Country, error) {
	var limit int
	if filter != nil {
		limit = filter.Limit
	}
	var countries []Country
	if err := c.list(ctx, "/country/read", filter.query(), limit, &countries); err != nil {
		return nil, err
	}
	return countries, nil
}

// list performs a read call and unwraps the "data" envelope into out.
func (c *Client) list(ctx context.Context, path string, query url.Values, limit int, out any) error {
	query.Set("limit", c.limitParam(limit))
	query.Set("format", "json")

	var envelope dataEnvelope
	resp, err := c.transport.DoJSON(ctx, &api.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	}, &envelope)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return apierror.Parse(resp.StatusCode, resp.Body, resp.Headers)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

func setString(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}

func setInt(v url.Values, key string, value int) {
	if value != 0 {
		v.Set(key, strconv.Itoa(value))
	}
}
