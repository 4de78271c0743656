package geometry

// QWERTY returns a built-in phone-sized QWERTY layout. Keys are 96x160 px on
// a 960x640 keyboard, with sweet spots at the key centers. Handy for tests
// and for the trace CLI when no layout file is given.
func QWERTY() *Keyboard {
	rows := []struct {
		chars   string
		xOffset int
		y       int
	}{
		{"qwertyuiop", 0, 0},
		{"asdfghjkl", 48, 160},
		{"zxcvbnm", 144, 320},
		{" ", 288, 480},
	}
	const keyW, keyH = 96, 160

	var keys []Key
	for _, row := range rows {
		x := row.xOffset
		for _, c := range row.chars {
			w := keyW
			if c == ' ' {
				w = keyW * 4
			}
			keys = append(keys, Key{
				Code: c, X: x, Y: row.y, Width: w, Height: keyH,
				HasSweetSpot:    true,
				SweetSpotX:      float64(x) + float64(w)/2,
				SweetSpotY:      float64(row.y) + keyH/2,
				SweetSpotRadius: float64(keyW) / 2,
			})
			x += w
		}
	}

	additional := map[rune][]rune{
		'e': {'é', 'è', 'ê', 'ë'},
		'a': {'à', 'â', 'ä'},
		'u': {'ù', 'û', 'ü'},
		'i': {'î', 'ï'},
		'o': {'ô', 'ö'},
		'c': {'ç'},
	}

	return New("qwerty-builtin", 960, 640, 20, 8, keys, additional)
}
