package renderer

import (
	"encoding/xml"
	"fmt"
)

const varLastChange = "LastChange"

// propertySet is a GENA NOTIFY body.
type propertySet struct {
	XMLName    xml.Name   `xml:"propertyset"`
	Properties []property `xml:"property"`
}

type property struct {
	Vars []propertyVar `xml:",any"`
}

type propertyVar struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// lastChangeEvent is the AVTransport LastChange document, which packs the
// real state variables as val attributes under an InstanceID.
type lastChangeEvent struct {
	XMLName   xml.Name     `xml:"Event"`
	Instances []instanceID `xml:"InstanceID"`
}

type instanceID struct {
	Val  string          `xml:"val,attr"`
	Vars []lastChangeVar `xml:",any"`
}

type lastChangeVar struct {
	XMLName xml.Name
	Val     string `xml:"val,attr"`
}

// ParseNotify turns a NOTIFY body into a Batch. LastChange payloads are
// unpacked for instance 0; other evented variables are passed through.
func ParseNotify(body []byte) (Batch, error) {
	var set propertySet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to parse propertyset: %w", err)
	}

	var batch Batch
	for _, p := range set.Properties {
		for _, v := range p.Vars {
			if v.XMLName.Local != varLastChange {
				batch = append(batch, Variable{Name: v.XMLName.Local, Value: v.Value})
				continue
			}

			vars, err := parseLastChange(v.Value)
			if err != nil {
				return nil, err
			}
			batch = append(batch, vars...)
		}
	}

	return batch, nil
}

func parseLastChange(raw string) (Batch, error) {
	var ev lastChangeEvent
	if err := xml.Unmarshal([]byte(raw), &ev); err != nil {
		return nil, fmt.Errorf("failed to parse LastChange: %w", err)
	}

	var batch Batch
	for _, inst := range ev.Instances {
		if inst.Val != "" && inst.Val != "0" {
			continue
		}
		for _, v := range inst.Vars {
			batch = append(batch, Variable{Name: v.XMLName.Local, Value: v.Val})
		}
	}

	return batch, nil
}
