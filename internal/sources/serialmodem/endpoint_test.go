package serialmodem

import "testing"

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    endpoint
		wantErr bool
	}{
		{
			name: "serial device with baud",
			raw:  "serial:///dev/ttyUSB0?baud=9600",
			want: endpoint{kind: endpointSerial, device: "/dev/ttyUSB0", baud: 9600},
		},
		{
			name: "serial device default baud",
			raw:  "serial:///dev/ttyUSB2",
			want: endpoint{kind: endpointSerial, device: "/dev/ttyUSB2", baud: defaultBaudRate},
		},
		{
			name: "windows com port",
			raw:  "serial://COM3",
			want: endpoint{kind: endpointSerial, device: "COM3", baud: defaultBaudRate},
		},
		{
			name: "tcp bridge",
			raw:  "tcp://10.0.0.5:7000",
			want: endpoint{kind: endpointTCP, address: "10.0.0.5:7000"},
		},
		{name: "tcp without port", raw: "tcp://10.0.0.5", wantErr: true},
		{name: "serial without device", raw: "serial://", wantErr: true},
		{name: "bad baud", raw: "serial:///dev/ttyUSB0?baud=fast", wantErr: true},
		{name: "zero baud", raw: "serial:///dev/ttyUSB0?baud=0", wantErr: true},
		{name: "unknown scheme", raw: "udp://10.0.0.5:7000", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEndpoint(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseEndpoint(%q) succeeded with %+v", tt.raw, got)
				}

				return
			}
			if err != nil {
				t.Fatalf("parseEndpoint(%q): %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("parseEndpoint(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEndpointLabel(t *testing.T) {
	serialEP := endpoint{kind: endpointSerial, device: "/dev/ttyUSB0", baud: defaultBaudRate}
	if serialEP.label() != "/dev/ttyUSB0" {
		t.Errorf("label() = %q", serialEP.label())
	}
	tcpEP := endpoint{kind: endpointTCP, address: "modem:7000"}
	if tcpEP.label() != "modem:7000" {
		t.Errorf("label() = %q", tcpEP.label())
	}
}
