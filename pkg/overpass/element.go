package overpass

// Element is one entry of the Overpass "elements" array. Nodes carry Lat and
// Lon; ways queried with "out center" carry Center and Nodes.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *Center           `json:"center,omitempty"`
	Nodes  []int64           `json:"nodes,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Center is the centroid Overpass computes for ways.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HasCoordinates reports whether both direct coordinates are present.
func (e Element) HasCoordinates() bool {
	return e.Lat != nil && e.Lon != nil
}

// response is the Overpass JSON envelope. Elements is a pointer so a missing
// key can be told apart from an empty array.
type response struct {
	Version   float64    `json:"version"`
	Generator string     `json:"generator"`
	Remark    string     `json:"remark"`
	Elements  *[]Element `json:"elements"`
}
