package renderer

import (
	"html"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func lastChangeBody(inner string) string {
	return `<?xml version="1.0"?>
<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
<e:property><LastChange>` + html.EscapeString(inner) + `</LastChange></e:property>
</e:propertyset>`
}

func TestParseNotify(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    Batch
		wantErr bool
	}{
		{
			name: "last change instance zero",
			body: lastChangeBody(`<Event xmlns="urn:schemas-upnp-org:metadata-1-0/AVT/">
<InstanceID val="0">
<TransportState val="PLAYING"/>
<CurrentTrackURI val="http://nas/stream?id=7"/>
<CurrentTrackMetaData val="` + html.EscapeString(didlBeta) + `"/>
</InstanceID>
</Event>`),
			want: Batch{
				{Name: VarTransportState, Value: "PLAYING"},
				{Name: VarCurrentTrackURI, Value: "http://nas/stream?id=7"},
				{Name: VarCurrentTrackMetaData, Value: didlBeta},
			},
		},
		{
			name: "other instances are ignored",
			body: lastChangeBody(`<Event>
<InstanceID val="1"><TransportState val="STOPPED"/></InstanceID>
<InstanceID val="0"><TransportState val="PAUSED_PLAYBACK"/></InstanceID>
</Event>`),
			want: Batch{
				{Name: VarTransportState, Value: "PAUSED_PLAYBACK"},
			},
		},
		{
			name: "plain evented variables pass through",
			body: `<e:propertyset xmlns:e="urn:schemas-upnp-org:event-1-0">
<e:property><TransportState>STOPPED</TransportState></e:property>
<e:property><CurrentPlayMode>SHUFFLE</CurrentPlayMode></e:property>
</e:propertyset>`,
			want: Batch{
				{Name: VarTransportState, Value: "STOPPED"},
				{Name: VarCurrentPlayMode, Value: "SHUFFLE"},
			},
		},
		{
			name:    "broken propertyset",
			body:    `<e:propertyset><e:property>`,
			wantErr: true,
		},
		{
			name:    "broken last change",
			body:    lastChangeBody(`<Event><InstanceID val="0">`),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseNotify([]byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseNotify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseNotify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
